// Package paginate implements the generic TLV pagination algorithm shared
// by every bulk query this core makes (inventory, component details, bulk
// ignition state, bulk ignition link events): repeatedly calling an RPC
// with an advancing offset, decoding each page's TLV entries, and enforcing
// the consistency and DoS-limit invariants an adversarial or buggy SP could
// violate.
package paginate

import (
	"context"

	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/wire"
)

// TotalItemsDosLimit bounds the total item count any paginated query will
// accept, regardless of what the SP reports. It exists purely to keep a
// misbehaving or compromised SP from driving unbounded memory growth.
const TotalItemsDosLimit = 1024

// Query is implemented once per paginated RPC kind.
type Query[T any] interface {
	// Request builds the page request for the given offset (the number of
	// items already collected).
	Request(offset uint32) wire.MgsRequest
	// ParseResponse extracts the page header from an SpResponse, failing if
	// resp is not this query's expected response kind.
	ParseResponse(resp wire.SpResponse) (wire.TlvPage, error)
	// ParseItem decodes one TLV triple. ok is false for a tag this query
	// does not parse (skip, don't count as progress); err is non-nil only
	// for a malformed value under a tag this query does understand.
	ParseItem(tag wire.Tag, value []byte) (item T, ok bool, err error)
}

// Rpc is the synchronous call surface Collect needs: it returns both the
// decoded response and the raw TLV bytes carried as that datagram's
// trailing data. Callers typically pass a client method value or a closure
// over a reactor handle.
type Rpc func(ctx context.Context, req wire.MgsRequest) (resp wire.SpResponse, tlvBytes []byte, err error)

// Collect drives q to completion, returning every item across as many
// pages as the SP requires. It enforces:
//  1. the DoS cap on the first page's reported total,
//  2. that every subsequent page reports the same total,
//  3. that each page's offset equals the number of items collected so far,
//  4. that the SP never delivers more items than its own reported total,
//  5. that a page with a positive remaining total makes some forward
//     progress (guards against an SP that emits only unknown tags).
func Collect[T any](ctx context.Context, q Query[T], call Rpc) ([]T, error) {
	var items []T
	var total uint32
	haveTotal := false
	offset := uint32(0)

	for {
		resp, raw, err := call(ctx, q.Request(offset))
		if err != nil {
			return nil, err
		}
		page, err := q.ParseResponse(resp)
		if err != nil {
			return nil, err
		}

		if !haveTotal {
			total = page.Total
			haveTotal = true
			if total > TotalItemsDosLimit {
				return nil, &sperrors.ErrTooManyItems{Limit: TotalItemsDosLimit, Total: total}
			}
		} else if page.Total != total {
			return nil, &sperrors.ErrTotalChanged{First: total, Later: page.Total}
		}

		if page.Offset != uint32(len(items)) {
			return nil, &sperrors.ErrUnexpectedOffset{Want: uint32(len(items)), Got: page.Offset}
		}

		triples, err := wire.DecodeTLV(raw)
		if err != nil {
			return nil, err
		}

		before := len(items)
		for _, tr := range triples {
			item, ok, err := q.ParseItem(tr.Tag, tr.Value)
			if err != nil {
				return nil, &sperrors.ErrTLVDeserialize{Tag: tr.Tag, Err: err}
			}
			if ok {
				items = append(items, item)
			}
		}

		if uint32(len(items)) > total {
			return nil, &sperrors.ErrOverReported{Total: total, Collected: uint32(len(items))}
		}
		if uint32(len(items)) >= total {
			return items, nil
		}
		if len(items) == before {
			return nil, &sperrors.ErrNoProgress{Offset: page.Offset, Total: total}
		}
		offset = uint32(len(items))
	}
}
