// Package fetcher turns a URL into HTML bytes.
//
// Two strategies implement the same Fetcher interface:
//   - HTTPFetcher: a plain net/http client. Fast, but page scripts never run.
//   - BrowserFetcher: headless Chrome driven through rod. The page is
//     rendered and the fetcher waits until the network has been idle for a
//     while, so content injected by client-side scripts is included.
//
// Both return a *Response whose Body is UTF-8, and both report failures as
// *FetchError (network error or non-2xx status). Which one is used is a
// configuration choice; the crawler never branches on it.
package fetcher
