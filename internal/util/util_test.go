package util

import (
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{"Plain", "$19.50", 19.5, true},
		{"Trailing text", " $29.99 after rebate", 29.99, true},
		{"Thousands", "$1,299.99", 1299.99, true},
		{"Leading text", "Now $5 shipped", 5, true},
		{"No dollar sign", "Free", 0, false},
		{"Garbage amount", "$abc", 0, false},
		{"Empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParsePrice(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		input string
		want  *int
	}{
		{"250", intPtr(250)},
		{" +12 ", intPtr(12)},
		{"-10", intPtr(-10)},
		{"1,024", intPtr(1024)},
		{"", nil},
		{"hot", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseScore(tt.input)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseScore(%q) = %d, want nil", tt.input, *got)
			case tt.want != nil && got == nil:
				t.Errorf("ParseScore(%q) = nil, want %d", tt.input, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("ParseScore(%q) = %d, want %d", tt.input, *got, *tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestPostIDFromURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://slickdeals.net/f/17012345-cheap-tv-199", "17012345"},
		{"https://slickdeals.net/f/17012345-cheap-tv?src=SiteSearch", "17012345"},
		{"https://slickdeals.net/f/17012345/", "17012345"},
		{"/f/42-thing", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := PostIDFromURL(tt.input); got != tt.want {
				t.Errorf("PostIDFromURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRelativeLink(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/f/123-deal", true},
		{"f/123-deal", true},
		{"https://ads.example.com/click", false},
		{"HTTP://ads.example.com/click", false},
		{"//cdn.example.com/x", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsRelativeLink(tt.input); got != tt.want {
				t.Errorf("IsRelativeLink(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	got, err := AbsoluteURL("https://slickdeals.net", "/f/123-deal?src=x")
	if err != nil {
		t.Fatalf("AbsoluteURL() error = %v", err)
	}
	if got != "https://slickdeals.net/f/123-deal?src=x" {
		t.Errorf("AbsoluteURL() = %q", got)
	}
}

func TestStripQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.amazon.com/dp/B0001?tag=sd-20&ref=x", "https://www.amazon.com/dp/B0001"},
		{"https://www.bestbuy.com/site/123.p", "https://www.bestbuy.com/site/123.p"},
	}

	for _, tt := range tests {
		if got := StripQuery(tt.input); got != tt.want {
			t.Errorf("StripQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGetDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Standard domain", "https://amazon.ca/dp/12345", "amazon.ca"},
		{"Subdomain", "https://sub.amazon.ca/dp/12345", "amazon.ca"},
		{"Two-part TLD", "https://example.co.uk/product", "example.co.uk"},
		{"Subdomain with two-part TLD", "https://sub.example.co.uk/product", "example.co.uk"},
		{"www", "https://www.slickdeals.net", "slickdeals.net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetDomain(tt.input); got != tt.want {
				t.Errorf("GetDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAllowedURL(t *testing.T) {
	allowed := []string{"slickdeals.net", "127.0.0.1"}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Apex", "https://slickdeals.net/newsearch.php", false},
		{"Subdomain", "https://www.slickdeals.net/f/1", false},
		{"Loopback", "http://127.0.0.1:8080/f/1", false},
		{"Foreign host", "https://evil.example.com/f/1", true},
		{"Bad scheme", "ftp://slickdeals.net/f/1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IsAllowedURL(tt.input, allowed)
			if (err != nil) != tt.wantErr {
				t.Errorf("IsAllowedURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnwrapRedirector(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		changed bool
	}{
		{
			name:    "Not a redirector",
			input:   "https://example.com/product",
			want:    "https://example.com/product",
			changed: false,
		},
		{
			name:    "Linksynergy",
			input:   "https://click.linksynergy.com/deeplink?id=x&murl=https%3A%2F%2Fwww.walmart.com%2Fip%2F123",
			want:    "https://www.walmart.com/ip/123",
			changed: true,
		},
		{
			name:    "Skimlinks",
			input:   "https://go.redirectingat.com/?id=1&url=https%3A%2F%2Fwww.target.com%2Fp%2F9",
			want:    "https://www.target.com/p/9",
			changed: true,
		},
		{
			name:    "Missing destination",
			input:   "https://go.redirectingat.com/?id=1",
			want:    "https://go.redirectingat.com/?id=1",
			changed: false,
		},
		{
			name:    "Non-http destination",
			input:   "https://go.redirectingat.com/?url=javascript%3Aalert(1)",
			want:    "https://go.redirectingat.com/?url=javascript%3Aalert(1)",
			changed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := UnwrapRedirector(tt.input)
			if got != tt.want {
				t.Errorf("UnwrapRedirector() got = %v, want %v", got, tt.want)
			}
			if changed != tt.changed {
				t.Errorf("UnwrapRedirector() changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}
