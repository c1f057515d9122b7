package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested object does not exist on-chain.
var ErrNotFound = errors.New("object not found")

const defaultPageLimit = 50

// Client is the network collaborator: object lookups, package interface
// metadata, dry-run simulation, and signed submission over JSON-RPC 2.0.
type Client struct {
	rpc *rpc.Client
	log zerolog.Logger
}

func Dial(ctx context.Context, url string, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, clierr.New(clierr.CodeUsage, "rpc url is required")
	}
	c, err := rpc.DialContext(ctx, strings.TrimSpace(url))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	return &Client{rpc: c, log: log}, nil
}

func (c *Client) Close() {
	if c != nil && c.rpc != nil {
		c.rpc.Close()
	}
}

type rawObject struct {
	ObjectID string   `json:"objectId"`
	Version  string   `json:"version"`
	Type     string   `json:"type"`
	Owner    rawOwner `json:"owner"`
	Content  *struct {
		Fields map[string]any `json:"fields"`
	} `json:"content"`
}

type objectResponse struct {
	Data  *rawObject `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeObject(raw *rawObject) *ObjectData {
	version, _ := strconv.ParseUint(raw.Version, 10, 64)
	out := &ObjectData{
		ID:                   raw.ObjectID,
		Type:                 raw.Type,
		Version:              version,
		Owner:                raw.Owner.Kind,
		OwnerAddress:         raw.Owner.Address,
		InitialSharedVersion: raw.Owner.InitialSharedVersion,
	}
	if raw.Content != nil {
		out.Content = raw.Content.Fields
	}
	return out
}

// GetObject fetches one object with type, owner, and content.
func (c *Client) GetObject(ctx context.Context, objectID string) (*ObjectData, error) {
	var resp objectResponse
	opts := map[string]bool{"showType": true, "showOwner": true, "showContent": true}
	if err := c.rpc.CallContext(ctx, &resp, "sui_getObject", objectID, opts); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch object", err)
	}
	if resp.Error != nil || resp.Data == nil {
		return nil, ErrNotFound
	}
	return decodeObject(resp.Data), nil
}

type ownedObjectsResponse struct {
	Data []struct {
		Data *rawObject `json:"data"`
	} `json:"data"`
	NextCursor  string `json:"nextCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// ListOwnedObjects lists objects owned by an address, optionally filtered by
// struct type, one page at a time.
func (c *Client) ListOwnedObjects(ctx context.Context, owner, structType, cursor string) (Page[*ObjectData], error) {
	query := map[string]any{
		"options": map[string]bool{"showType": true, "showOwner": true, "showContent": true},
	}
	if strings.TrimSpace(structType) != "" {
		query["filter"] = map[string]string{"StructType": structType}
	}
	var resp ownedObjectsResponse
	args := []any{owner, query, cursorOrNil(cursor), defaultPageLimit}
	if err := c.rpc.CallContext(ctx, &resp, "suix_getOwnedObjects", args...); err != nil {
		return Page[*ObjectData]{}, clierr.Wrap(clierr.CodeUnavailable, "list owned objects", err)
	}
	page := Page[*ObjectData]{NextCursor: resp.NextCursor, HasNextPage: resp.HasNextPage}
	for _, item := range resp.Data {
		if item.Data == nil {
			continue
		}
		page.Items = append(page.Items, decodeObject(item.Data))
	}
	return page, nil
}

type dynamicFieldsResponse struct {
	Data        []DynamicFieldInfo `json:"data"`
	NextCursor  string             `json:"nextCursor"`
	HasNextPage bool               `json:"hasNextPage"`
}

// ListDynamicFields lists the dynamic child fields of a parent object.
func (c *Client) ListDynamicFields(ctx context.Context, parentID, cursor string) (Page[DynamicFieldInfo], error) {
	var resp dynamicFieldsResponse
	args := []any{parentID, cursorOrNil(cursor), defaultPageLimit}
	if err := c.rpc.CallContext(ctx, &resp, "suix_getDynamicFields", args...); err != nil {
		return Page[DynamicFieldInfo]{}, clierr.Wrap(clierr.CodeUnavailable, "list dynamic fields", err)
	}
	return Page[DynamicFieldInfo]{
		Items:       resp.Data,
		NextCursor:  resp.NextCursor,
		HasNextPage: resp.HasNextPage,
	}, nil
}

// GetPackageInterface fetches the normalized module map of a deployed
// package: every exposed function with its parameter shapes and entry flag.
func (c *Client) GetPackageInterface(ctx context.Context, packageID string) (map[string]NormalizedModule, error) {
	var resp map[string]NormalizedModule
	if err := c.rpc.CallContext(ctx, &resp, "sui_getNormalizedMoveModulesByPackage", packageID); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch package interface", err)
	}
	return resp, nil
}

type txEffects struct {
	Effects struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
		TransactionDigest string `json:"transactionDigest"`
	} `json:"effects"`
	Events []Event `json:"events"`
	Digest string  `json:"digest"`
}

func (r txEffects) result() *ExecResult {
	digest := r.Digest
	if digest == "" {
		digest = r.Effects.TransactionDigest
	}
	return &ExecResult{
		Accepted:     strings.EqualFold(r.Effects.Status.Status, "success"),
		ErrorMessage: r.Effects.Status.Error,
		Digest:       digest,
		Events:       r.Events,
	}
}

// Simulate dry-runs an unsigned transaction. It never submits.
func (c *Client) Simulate(ctx context.Context, tx *Transaction) (*ExecResult, error) {
	raw, err := tx.Encode()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode transaction", err)
	}
	var resp txEffects
	if err := c.rpc.CallContext(ctx, &resp, "sui_dryRunTransactionBlock", base64.StdEncoding.EncodeToString(raw)); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "dry-run transaction", err)
	}
	res := resp.result()
	c.log.Debug().Bool("accepted", res.Accepted).Str("error", res.ErrorMessage).Msg("simulated transaction")
	return res, nil
}

// Submit executes a signed transaction and waits for local execution.
func (c *Client) Submit(ctx context.Context, txBytes []byte, signatures []string) (*ExecResult, error) {
	var resp txEffects
	opts := map[string]bool{"showEffects": true, "showEvents": true}
	args := []any{
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		opts,
		"WaitForLocalExecution",
	}
	if err := c.rpc.CallContext(ctx, &resp, "sui_executeTransactionBlock", args...); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "submit transaction", err)
	}
	res := resp.result()
	c.log.Info().Bool("accepted", res.Accepted).Str("digest", res.Digest).Msg("submitted transaction")
	return res, nil
}

type coinsResponse struct {
	Data        []Coin `json:"data"`
	NextCursor  string `json:"nextCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// GetCoins lists coins of one type owned by an address.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string) ([]Coin, error) {
	var out []Coin
	cursor := ""
	for {
		var resp coinsResponse
		args := []any{owner, coinType, cursorOrNil(cursor), defaultPageLimit}
		if err := c.rpc.CallContext(ctx, &resp, "suix_getCoins", args...); err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "list coins", err)
		}
		out = append(out, resp.Data...)
		if !resp.HasNextPage || resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

func cursorOrNil(cursor string) any {
	if strings.TrimSpace(cursor) == "" {
		return nil
	}
	return cursor
}

// DecodeContentJSON re-marshals loosely decoded object content into a typed
// destination. Used by callers that know the shape of a specific object.
func DecodeContentJSON(content map[string]any, dst any) error {
	buf, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode object content: %w", err)
	}
	return json.Unmarshal(buf, dst)
}
