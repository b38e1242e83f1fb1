// Package testutil holds fixtures shared by the storefront test suites: an
// in-memory sqlite database, seeded catalog data, a mock payment gateway and
// a recording event handler.
package testutil

import "github.com/gin-gonic/gin"

func init() {
	gin.SetMode(gin.TestMode)
}
