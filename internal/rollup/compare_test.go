package rollup

import "testing"

func TestCompareCodesNumericRuns(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"KOS 1", "KOS 2", -1},
		{"KOS 9", "KOS 10", -1},
		{"KOS 1.2", "KOS 1.10", -1},
		{"KOS 1.1", "KOS 1.1", 0},
		{"E1.2.3", "E1.2.3", 0},
		{"KOS 01", "KOS 1", 1},
		{"RDS 5", "KOS 5", 1},
		{"KOS 1", "KOS 1.1", -1},
	}
	for _, tc := range cases {
		got := CompareCodes(tc.a, tc.b)
		if sign(got) != tc.want {
			t.Errorf("CompareCodes(%q, %q) = %d, want sign %d", tc.a, tc.b, got, tc.want)
		}
		if back := CompareCodes(tc.b, tc.a); sign(back) != -tc.want {
			t.Errorf("CompareCodes(%q, %q) = %d, want sign %d", tc.b, tc.a, back, -tc.want)
		}
	}
}

func TestCompareCodesTurkish(t *testing.T) {
	// Turkish alphabet places ı before i and ç after c.
	if CompareCodes("ÇKS 1", "CKS 1") <= 0 {
		t.Error("expected Ç to collate after C")
	}
	if CompareCodes("İKS 1", "IKS 1") <= 0 {
		t.Error("expected İ to collate after I")
	}
}

func TestCompareBucketCodesOtherLast(t *testing.T) {
	if compareBucketCodes(OtherBucket, "ZZZ 99") <= 0 {
		t.Error("other bucket must sort after every real code")
	}
	if compareBucketCodes("A 1", OtherBucket) >= 0 {
		t.Error("real codes must sort before the other bucket")
	}
	if compareBucketCodes(OtherBucket, OtherBucket) != 0 {
		t.Error("other bucket must compare equal to itself")
	}
}

func TestCompareComponentsCanonicalOrder(t *testing.T) {
	rank := componentRank(nil)
	order := []string{"KOS", "RDS", "KFS", "BIS", "IS"}
	for i := 0; i < len(order)-1; i++ {
		if compareComponents(order[i], order[i+1], rank) >= 0 {
			t.Errorf("expected %s before %s", order[i], order[i+1])
		}
	}
	if compareComponents("IS", "AAA", rank) >= 0 {
		t.Error("canonical codes must sort before custom ones")
	}
	if compareComponents("AAA", OtherBucket, rank) >= 0 {
		t.Error("custom codes must sort before the other bucket")
	}
}

func TestCompareComponentsConfiguredOrder(t *testing.T) {
	rank := componentRank([]string{"RDS", "KOS"})
	if compareComponents("RDS", "KOS", rank) >= 0 {
		t.Error("configured order must override the canonical table")
	}
	if compareComponents("KOS", "ZZZ", rank) >= 0 {
		t.Error("ranked codes must sort before unranked ones")
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
