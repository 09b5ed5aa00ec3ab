package lightspeed

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		check   func(t *testing.T, o *options)
		option  Option
		wantErr string
	}{
		"WithBaseURL trims trailing slash": {
			option: WithBaseURL("https://example.com/"),
			check: func(t *testing.T, o *options) {
				require.Equal(t, "https://example.com", o.baseURL)
			},
		},
		"WithBaseURL rejects empty": {
			option:  WithBaseURL("  "),
			wantErr: "base URL cannot be empty",
		},
		"WithHTTPClient sets client": {
			option: WithHTTPClient(&http.Client{Timeout: time.Second}),
			check: func(t *testing.T, o *options) {
				require.NotNil(t, o.httpClient)
			},
		},
		"WithHTTPClient rejects nil": {
			option:  WithHTTPClient(nil),
			wantErr: "HTTP client cannot be nil",
		},
		"WithTimeout sets timeout": {
			option: WithTimeout(5 * time.Second),
			check: func(t *testing.T, o *options) {
				require.Equal(t, 5*time.Second, o.timeout)
			},
		},
		"WithTimeout rejects non-positive": {
			option:  WithTimeout(0),
			wantErr: "timeout must be positive",
		},
		"WithTokenURL sets endpoint": {
			option: WithTokenURL("https://example.com/token"),
			check: func(t *testing.T, o *options) {
				require.Equal(t, "https://example.com/token", o.tokenURL)
			},
		},
		"WithTokenURL rejects empty": {
			option:  WithTokenURL(""),
			wantErr: "token URL cannot be empty",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			o := defaultOptions()
			err := tc.option(o)

			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			tc.check(t, o)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	o := defaultOptions()
	require.Equal(t, defaultBaseURL, o.baseURL)
	require.Equal(t, defaultTimeout, o.timeout)
	require.Equal(t, defaultTokenURL, o.tokenURL)
	require.Nil(t, o.httpClient)
}
