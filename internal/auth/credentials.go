// Package auth acquires Google credentials and builds the API clients the
// pipeline talks to.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth2 scopes used by the pipeline.
const (
	PubSubScope   = "https://www.googleapis.com/auth/pubsub"
	BigQueryScope = "https://www.googleapis.com/auth/bigquery"
	LanguageScope = "https://www.googleapis.com/auth/cloud-language"
)

var (
	findDefaultCredentials = google.FindDefaultCredentials
	credentialsFromJSON    = google.CredentialsFromJSON
)

// Credentials returns scoped Google credentials.
//
// When keyFile is set it must be a service account (or authorized user)
// JSON key; otherwise Application Default Credentials are used. Scopes
// default to PubSubScope. Credentials that do not take scopes (such as
// those of the GCE metadata server) ignore them.
func Credentials(ctx context.Context, keyFile string, scopes ...string) (*google.Credentials, error) {
	if len(scopes) == 0 {
		scopes = []string{PubSubScope}
	}

	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		creds, err := credentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse credentials file %s: %w", keyFile, err)
		}
		return creds, nil
	}

	creds, err := findDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("application default credentials not found (run 'gcloud auth application-default login'): %w", err)
	}
	return creds, nil
}

// HTTPClient returns an HTTP client that authorizes every request with a
// token from creds.
func HTTPClient(ctx context.Context, creds *google.Credentials) *http.Client {
	return oauth2.NewClient(ctx, creds.TokenSource)
}
