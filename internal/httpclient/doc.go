// Package httpclient builds and sends the outbound HTTP requests of a run.
//
// [NewRequestBuilder] validates the configured target host and default headers
// once; [RequestBuilder.Build] then appends a relative path per request:
//
//	builder, err := httpclient.NewRequestBuilder(cfg)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, "/products/search?q=Books")
//
// [NewClient] returns a client with a connection pool sized for many
// simulated users sharing one host.
package httpclient
