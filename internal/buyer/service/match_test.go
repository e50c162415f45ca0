package service

import (
	"errors"
	"testing"
)

func TestMatchArbitrationAgents(t *testing.T) {
	tests := []struct {
		name     string
		buyer    []string
		merchant []string
		want     string
		wantErr  bool
	}{
		{
			name: "both unrestricted",
			want: "",
		},
		{
			name:     "buyer unrestricted takes merchant's first",
			merchant: []string{"http://arb-a.example", "http://arb-b.example"},
			want:     "http://arb-a.example",
		},
		{
			name:  "merchant unrestricted takes buyer's first",
			buyer: []string{"http://arb-b.example", "http://arb-a.example"},
			want:  "http://arb-b.example",
		},
		{
			name:     "first common agent in buyer order wins",
			buyer:    []string{"http://arb-c.example", "http://arb-b.example", "http://arb-a.example"},
			merchant: []string{"http://arb-a.example", "http://arb-b.example"},
			want:     "http://arb-b.example",
		},
		{
			name:     "comparison ignores case and trailing slash",
			buyer:    []string{"HTTP://Arb-A.example/"},
			merchant: []string{"http://arb-a.example"},
			want:     "HTTP://Arb-A.example/",
		},
		{
			name:     "disjoint sets are incompatible",
			buyer:    []string{"http://arb-a.example"},
			merchant: []string{"http://arb-b.example"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchArbitrationAgents(tt.buyer, tt.merchant)
			if tt.wantErr {
				var ierr *IncompatibleError
				if !errors.As(err, &ierr) {
					t.Fatalf("MatchArbitrationAgents() error = %v, want IncompatibleError", err)
				}
				if len(ierr.BuyerAgents) == 0 || len(ierr.MerchantAgents) == 0 {
					t.Errorf("IncompatibleError should carry both lists: %+v", ierr)
				}
				return
			}
			if err != nil {
				t.Fatalf("MatchArbitrationAgents() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MatchArbitrationAgents() = %q, want %q", got, tt.want)
			}
		})
	}
}
