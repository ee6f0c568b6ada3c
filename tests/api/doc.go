// Package api drives a running inbox server over HTTP: team administration,
// webhook ingestion (single and batch), thread status changes and the
// delivery status webhook. Every run creates teams on fresh random domains,
// so it is safe against a shared development database.
//
//	go run ./cmd/server &
//	API_BASE_URL=http://localhost:8080 API_KEY=... go test -tags=api ./tests/api/...
//
// API_BASE_URL defaults to http://localhost:8080 and API_KEY to the local
// development key; set it to the server's API_KEY otherwise.
package api
