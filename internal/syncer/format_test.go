package syncer

import "testing"

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{1, "1s"},
		{45, "45s"},
		{59, "59s"},
		{60, "1m 0s"},
		{61, "1m 1s"},
		{125, "2m 5s"},
		{3599, "59m 59s"},
		{3600, "1h 0m"},
		{3660, "1h 1m"},
		{3725, "1h 2m"},
		{7322, "2h 2m"},
		{86400, "24h 0m"},
		{-5, "0s"},
	}

	for _, tc := range cases {
		if got := FormatDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
