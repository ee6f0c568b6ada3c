// Package tests groups the suites that need more than one package:
//
//	mocks        testify mocks for repositories, storage and the live feed
//	fixtures     builders plus raw .eml files under fixtures/emails
//	integration  postgres and redis via testcontainers (-tags=integration)
//	e2e          SMTP and webhook to API round trips (-tags=e2e)
//	api          black-box checks against a running server (-tags=api)
//
// The blank imports pin test-only modules that are otherwise reached only
// from tagged files.
package tests

import (
	_ "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/testcontainers/testcontainers-go"
)
