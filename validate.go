package electrum

import "github.com/go-playground/validator/v10"

// validate is shared across every Options struct's constructor, following
// the `libval.New().Struct(o)` pattern nabbar-golib uses throughout its
// config types (httpcli/options.go, mailer/config.go). A single package-
// level validator.New() is safe for concurrent use and avoids re-building
// its tag cache per construction call.
var validate = validator.New()
