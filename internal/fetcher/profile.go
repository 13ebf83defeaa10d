package fetcher

import "net/http"

const chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// BrowserProfile is the static header set sent with every request. Amazon
// fingerprints clients by their headers and answers bare clients with
// degraded or blocking pages.
type BrowserProfile struct {
	headers http.Header
}

// ChromeWindowsProfile mimics desktop Chrome 127 on Windows.
func ChromeWindowsProfile() BrowserProfile {
	h := make(http.Header)
	h.Set("User-Agent", chromeUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	h.Set("Accept-Language", "en-US,en;q=0.9,pt-BR;q=0.8,pt;q=0.7")
	h.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Ch-Ua", `"Not/A)Brand";v="8", "Chromium";v="127", "Google Chrome";v="127"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	return BrowserProfile{headers: h}
}

// WithUserAgent returns a copy of the profile with a different User-Agent.
// An empty value returns the profile unchanged.
func (p BrowserProfile) WithUserAgent(ua string) BrowserProfile {
	if ua == "" {
		return p
	}
	h := p.headers.Clone()
	h.Set("User-Agent", ua)
	return BrowserProfile{headers: h}
}

// Header returns a copy of the header set.
func (p BrowserProfile) Header() http.Header {
	return p.headers.Clone()
}

// UserAgent returns the profile's User-Agent.
func (p BrowserProfile) UserAgent() string {
	return p.headers.Get("User-Agent")
}

// Apply sets the profile headers on req, replacing existing values.
func (p BrowserProfile) Apply(req *http.Request) {
	for k, v := range p.headers {
		req.Header[k] = append([]string(nil), v...)
	}
}
