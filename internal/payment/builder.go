package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"storefront-core/internal/orders"
)

// Config carries the gateway credentials. Server-side only, sourced from
// configuration, never from client input.
type Config struct {
	MerchantCode string
	SecretKey    string
	ReturnURL    string
}

type ChargeItem struct {
	ItemID      string `json:"itemId"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"` // fixed two decimals
	Quantity    int    `json:"quantity"`
}

// ChargeRequest is derived fresh from an order at charge time. The
// signature is recomputed per request and never persisted.
type ChargeRequest struct {
	MerchantCode      string       `json:"merchantCode"`
	MerchantRefNum    string       `json:"merchantRefNum"`
	CustomerProfileID string       `json:"customerProfileId,omitempty"`
	ReturnURL         string       `json:"returnUrl,omitempty"`
	Items             []ChargeItem `json:"chargeItems"`
	Signature         string       `json:"signature"`
}

type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder { return &Builder{cfg: cfg} }

// Build maps the order's item snapshot 1:1 into a signed charge request.
// The merchant reference number is the human-facing order number.
func (b *Builder) Build(o *orders.Order, customerProfileID string) ChargeRequest {
	items := make([]ChargeItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ChargeItem{
			ItemID:      it.ProductID,
			Description: it.Name,
			Price:       formatPrice(it.PriceCents),
			Quantity:    it.Quantity,
		})
	}
	req := ChargeRequest{
		MerchantCode:      b.cfg.MerchantCode,
		MerchantRefNum:    o.OrderNumber,
		CustomerProfileID: customerProfileID,
		ReturnURL:         b.cfg.ReturnURL,
		Items:             items,
	}
	req.Signature = b.sign(req)
	return req
}

// sign reproduces the gateway's signature byte for byte: items sorted by
// item id case-insensitively, fields concatenated with no separators, then
// the secret key, SHA-256, lowercase hex. Input item order must not affect
// the result, the sort here is what guarantees that.
func (b *Builder) sign(req ChargeRequest) string {
	sorted := make([]ChargeItem, len(req.Items))
	copy(sorted, req.Items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].ItemID) < strings.ToLower(sorted[j].ItemID)
	})

	var sb strings.Builder
	sb.WriteString(req.MerchantCode)
	sb.WriteString(req.MerchantRefNum)
	sb.WriteString(req.CustomerProfileID)
	sb.WriteString(req.ReturnURL)
	for _, it := range sorted {
		sb.WriteString(it.ItemID)
		sb.WriteString(strconv.Itoa(it.Quantity))
		sb.WriteString(it.Price)
	}
	sb.WriteString(b.cfg.SecretKey)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func formatPrice(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.Itoa(cents/100) + "." + pad2(cents%100)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
