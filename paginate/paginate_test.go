package paginate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxidecomputer/spgw/sperrors"
	"github.com/oxidecomputer/spgw/wire"
)

// intQuery treats every TagIgnitionState TLV value's first byte as one int
// item, skipping any other tag (so tests can model "unknown tag" pages).
type intQuery struct{}

func (intQuery) Request(offset uint32) wire.MgsRequest {
	return wire.MgsRequest{Kind: wire.ReqBulkIgnitionState, Offset: offset}
}

func (intQuery) ParseResponse(resp wire.SpResponse) (wire.TlvPage, error) {
	return resp.ExpectBulkIgnitionState()
}

func (intQuery) ParseItem(tag wire.Tag, value []byte) (int, bool, error) {
	if tag != wire.TagIgnitionState {
		return 0, false, nil
	}
	return int(value[0]), true, nil
}

func makePageResponse(offset, total uint32) wire.SpResponse {
	return wire.SpResponse{Kind: wire.RespBulkIgnitionState, Page: wire.TlvPage{Offset: offset, Total: total}}
}

// encodeItems packs n single-byte TagIgnitionState TLV triples.
func encodeItems(n int) []byte {
	var buf []byte
	for i := 0; i < n; i++ {
		buf = append(buf, uint8(wire.TagIgnitionState), 0, 1, byte(i))
	}
	return buf
}

// encodeUnknownTag packs one TLV triple under a tag intQuery doesn't
// recognize, so it never counts as progress.
func encodeUnknownTag() []byte {
	return []byte{uint8(wire.TagPortStatus), 0, 1, 0xFF}
}

func TestCollectSinglePage(t *testing.T) {
	calls := 0
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		calls++
		require.Equal(t, uint32(0), req.Offset)
		return makePageResponse(0, 0), nil, nil
	}
	items, err := Collect[int](context.Background(), intQuery{}, call)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, 1, calls)
}

func TestCollectMultiplePages(t *testing.T) {
	calls := 0
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		calls++
		switch req.Offset {
		case 0:
			return makePageResponse(0, 3), encodeItems(2), nil
		case 2:
			return makePageResponse(2, 3), encodeItems(1), nil
		default:
			t.Fatalf("unexpected offset %d", req.Offset)
		}
		return wire.SpResponse{}, nil, nil
	}
	items, err := Collect[int](context.Background(), intQuery{}, call)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 0}, items)
	require.Equal(t, 2, calls)
}

func TestCollectTooManyItemsRejected(t *testing.T) {
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		return makePageResponse(0, TotalItemsDosLimit+1), nil, nil
	}
	_, err := Collect[int](context.Background(), intQuery{}, call)
	require.Error(t, err)
	var tooMany *sperrors.ErrTooManyItems
	require.ErrorAs(t, err, &tooMany)
}

func TestCollectUnexpectedOffsetRejected(t *testing.T) {
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		// First page claims offset 5 despite nothing collected yet.
		return makePageResponse(5, 10), nil, nil
	}
	_, err := Collect[int](context.Background(), intQuery{}, call)
	require.Error(t, err)
	var unexpected *sperrors.ErrUnexpectedOffset
	require.ErrorAs(t, err, &unexpected)
}

func TestCollectNoProgressRejected(t *testing.T) {
	// Total is nonzero but the page carries only an unknown tag, so
	// ParseItem never reports progress: the paginator must not loop forever.
	calls := 0
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		calls++
		return makePageResponse(0, 3), encodeUnknownTag(), nil
	}
	_, err := Collect[int](context.Background(), intQuery{}, call)
	require.Error(t, err)
	var noProgress *sperrors.ErrNoProgress
	require.ErrorAs(t, err, &noProgress)
	require.Equal(t, 1, calls)
}

func TestCollectTotalChangedMidQueryRejected(t *testing.T) {
	calls := 0
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		calls++
		if calls == 1 {
			return makePageResponse(0, 10), encodeItems(1), nil
		}
		return makePageResponse(1, 11), encodeItems(1), nil
	}
	_, err := Collect[int](context.Background(), intQuery{}, call)
	require.Error(t, err)
	var totalChanged *sperrors.ErrTotalChanged
	require.ErrorAs(t, err, &totalChanged)
}

func TestCollectOverReportedRejected(t *testing.T) {
	call := func(ctx context.Context, req wire.MgsRequest) (wire.SpResponse, []byte, error) {
		return makePageResponse(0, 1), encodeItems(2), nil
	}
	_, err := Collect[int](context.Background(), intQuery{}, call)
	require.Error(t, err)
	var overReported *sperrors.ErrOverReported
	require.ErrorAs(t, err, &overReported)
}
