package clusterclient

import "crypto/tls"

// insecureTLSConfig is used when a cluster descriptor opts out of
// certificate verification (self-signed OSCAR deployments are common in
// on-premise installs).
var insecureTLSConfig = tls.Config{InsecureSkipVerify: true} //nolint:gosec
