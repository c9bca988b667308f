// Package catalog is the boundary to the Petstore catalog API.
//
// Client.Fetch issues GET {baseUrl}/pet/findByStatus?status={status} and always
// returns a Result: either the validated pets or a typed *Error. Raw payloads
// never leave this package. Decoding is total: a body that is not a JSON array
// yields no pets, and records without an integral id are dropped.
//
// Example usage:
//
//	c, err := catalog.New(catalog.DefaultConfig())
//	res := c.Fetch(ctx, catalog.StatusAvailable)
//	if !res.OK() {
//		fmt.Println(res.Err.UserMessage())
//	}
package catalog
