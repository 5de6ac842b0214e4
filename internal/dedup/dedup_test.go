package dedup

import (
	"context"
	"testing"
)

func TestMemoryOracleSeenIsReadOnly(t *testing.T) {
	o := NewMemoryOracle()
	ctx := context.Background()

	seen, err := o.Seen(ctx, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Error("unmarked id should not be seen")
	}

	// Seen must not mark; only Mark does.
	seen, _ = o.Seen(ctx, "t1")
	if seen {
		t.Error("repeated read should not mark the id")
	}

	if err := o.Mark(ctx, "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, _ = o.Seen(ctx, "t1")
	if !seen {
		t.Error("marked id should be seen")
	}

	seen, _ = o.Seen(ctx, "t2")
	if seen {
		t.Error("distinct id should not be seen")
	}
}
