package testutil

import (
	"transfer-router/internal/orchestrator"
	"transfer-router/internal/routing"
)

// RouteBuilder builds routing.Route fixtures with sensible defaults
type RouteBuilder struct {
	route routing.Route
}

// NewRoute starts a builder for an enabled CM->SN route
func NewRoute() *RouteBuilder {
	return &RouteBuilder{route: routing.Route{
		SourceCountry: "CM",
		DestCountry:   "SN",
		Gateway:       "mtn_momo",
		Priority:      100,
		FeePercent:    1.0,
		Enabled:       true,
	}}
}

func (b *RouteBuilder) Corridor(source, dest string) *RouteBuilder {
	b.route.SourceCountry = source
	b.route.DestCountry = dest
	return b
}

func (b *RouteBuilder) Gateway(name string) *RouteBuilder {
	b.route.Gateway = name
	return b
}

func (b *RouteBuilder) Fee(percent float64) *RouteBuilder {
	b.route.FeePercent = percent
	return b
}

func (b *RouteBuilder) Priority(p int) *RouteBuilder {
	b.route.Priority = p
	return b
}

func (b *RouteBuilder) Disabled() *RouteBuilder {
	b.route.Enabled = false
	return b
}

// Build returns the route value
func (b *RouteBuilder) Build() *routing.Route {
	copied := b.route
	return &copied
}

// RequestBuilder builds orchestrator.Request fixtures. Defaults describe a
// small CM->SN transfer.
type RequestBuilder struct {
	req orchestrator.Request
}

// NewRequest starts a builder with default phones and amount
func NewRequest() *RequestBuilder {
	return &RequestBuilder{req: orchestrator.Request{
		Reference:      "tr-test-1",
		SenderPhone:    "+237650000001",
		RecipientPhone: "+221770000001",
		Amount:         100_000,
		Currency:       "XOF",
	}}
}

func (b *RequestBuilder) Amount(amount int64) *RequestBuilder {
	b.req.Amount = amount
	return b
}

func (b *RequestBuilder) Phones(sender, recipient string) *RequestBuilder {
	b.req.SenderPhone = sender
	b.req.RecipientPhone = recipient
	return b
}

func (b *RequestBuilder) Operator(operator string) *RequestBuilder {
	b.req.Operator = operator
	return b
}

func (b *RequestBuilder) Reference(ref string) *RequestBuilder {
	b.req.Reference = ref
	return b
}

// Build returns the request value
func (b *RequestBuilder) Build() *orchestrator.Request {
	copied := b.req
	return &copied
}
