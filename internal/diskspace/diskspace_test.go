package diskspace

import "testing"

func TestQuery_ReturnsPositiveTotals(t *testing.T) {
	info, err := Query(".")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if info.TotalBytes == 0 {
		t.Fatalf("expected a non-zero total byte count")
	}
	if info.FreeBytes > info.TotalBytes {
		t.Fatalf("free bytes %d exceeds total bytes %d", info.FreeBytes, info.TotalBytes)
	}
}

func TestHasHeadroom_RejectsImpossibleRequirement(t *testing.T) {
	ok, info, err := HasHeadroom(".", int64(^uint64(0)>>1), 0.20)
	if err != nil {
		t.Fatalf("HasHeadroom: %v", err)
	}
	if ok {
		t.Fatalf("expected no headroom for a requirement larger than any real disk, total=%d", info.TotalBytes)
	}
}

func TestHasHeadroom_AcceptsTrivialRequirement(t *testing.T) {
	ok, _, err := HasHeadroom(".", 1, 0.20)
	if err != nil {
		t.Fatalf("HasHeadroom: %v", err)
	}
	if !ok {
		t.Fatalf("expected headroom for a 1-byte requirement")
	}
}

func TestAvailableDrives_ReturnsAtLeastOne(t *testing.T) {
	drives := AvailableDrives()
	if len(drives) == 0 {
		t.Fatalf("expected at least one available drive")
	}
}
