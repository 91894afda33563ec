package discovery

import (
	"errors"
	"testing"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		want    string
		wantErr error
	}{
		{
			name: "IPv4Default",
			ep:   Endpoint{Host: "srv.local.", Port: 8080, Addresses: []string{"192.168.1.10"}},
			want: "ws://192.168.1.10:8080/",
		},
		{
			name: "IPv6Bracketed",
			ep:   Endpoint{Port: 9000, Addresses: []string{"fe80::1"}, Path: "/events"},
			want: "ws://[fe80::1]:9000/events",
		},
		{
			name: "HostFallbackWithTLS",
			ep:   Endpoint{Host: "srv.local.", Port: 443, TLS: true, Path: "ws"},
			want: "wss://srv.local:443/ws",
		},
		{
			name:    "NoAddress",
			ep:      Endpoint{Port: 80},
			wantErr: ErrNoAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ep.URL()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("URL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("URL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventTypeString(t *testing.T) {
	if EventAdded.String() != "ADDED" {
		t.Errorf("EventAdded = %q", EventAdded.String())
	}
	if EventRemoved.String() != "REMOVED" {
		t.Errorf("EventRemoved = %q", EventRemoved.String())
	}
	if EventType(9).String() != "UNKNOWN" {
		t.Errorf("EventType(9) = %q", EventType(9).String())
	}
}
