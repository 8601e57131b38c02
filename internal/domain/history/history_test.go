package history

import (
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
)

func entry(i int) Entry {
	at := time.Unix(int64(i), 0)
	return Entry{
		Result:    result.New(nil, "img-"+strconv.Itoa(i), at, query.URL),
		Timestamp: at,
	}
}

func TestPrepend_MostRecentFirst(t *testing.T) {
	h := New(0)
	h = h.Prepend(entry(1))
	h = h.Prepend(entry(2))

	got := h.Entries()
	if len(got) != 2 {
		t.Fatalf("Len = %d", len(got))
	}
	if got[0].Result.UploadedImage() != "img-2" || got[1].Result.UploadedImage() != "img-1" {
		t.Errorf("order = %q, %q", got[0].Result.UploadedImage(), got[1].Result.UploadedImage())
	}
}

func TestPrepend_EvictsOldest(t *testing.T) {
	h := New(domain.HistoryCapacity)
	for i := 1; i <= 6; i++ {
		h = h.Prepend(entry(i))
		if h.Len() > domain.HistoryCapacity {
			t.Fatalf("history grew to %d", h.Len())
		}
	}

	got := h.Entries()
	if len(got) != 5 {
		t.Fatalf("Len = %d, want 5", len(got))
	}
	for i, e := range got {
		want := "img-" + strconv.Itoa(6-i)
		if e.Result.UploadedImage() != want {
			t.Errorf("entry[%d] = %q, want %q", i, e.Result.UploadedImage(), want)
		}
	}
}

func TestPrepend_DoesNotMutateReceiver(t *testing.T) {
	h := New(2).Prepend(entry(1)).Prepend(entry(2))
	next := h.Prepend(entry(3))

	if h.Entries()[0].Result.UploadedImage() != "img-2" {
		t.Error("receiver was mutated")
	}
	if next.Entries()[1].Result.UploadedImage() != "img-2" {
		t.Errorf("next[1] = %q", next.Entries()[1].Result.UploadedImage())
	}
	if next.Len() != 2 {
		t.Errorf("next.Len() = %d", next.Len())
	}
}

func TestZeroValue(t *testing.T) {
	var h History
	if h.Capacity() != domain.HistoryCapacity {
		t.Errorf("Capacity() = %d", h.Capacity())
	}
	h = h.Prepend(entry(1))
	if h.Len() != 1 {
		t.Errorf("Len() = %d", h.Len())
	}
}
