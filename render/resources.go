package render

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultBlockResources are the request types a visibility page can skip:
// none of them changes whether an element is displayed.
var DefaultBlockResources = []string{"Image", "Media", "Font", "Ping", "CSPViolationReport"}

// Documents, stylesheets and scripts decide what is displayed.
var layoutTypes = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeDocument:   true,
	proto.NetworkResourceTypeStylesheet: true,
	proto.NetworkResourceTypeScript:     true,
}

var resourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeDocument,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeMedia,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeScript,
	proto.NetworkResourceTypeTextTrack,
	proto.NetworkResourceTypeXHR,
	proto.NetworkResourceTypeFetch,
	proto.NetworkResourceTypePrefetch,
	proto.NetworkResourceTypeEventSource,
	proto.NetworkResourceTypeWebSocket,
	proto.NetworkResourceTypeManifest,
	proto.NetworkResourceTypeSignedExchange,
	proto.NetworkResourceTypePing,
	proto.NetworkResourceTypeCSPViolationReport,
	proto.NetworkResourceTypePreflight,
	proto.NetworkResourceTypeOther,
}

// resourceFilter is the set of request types a page fails.
type resourceFilter map[proto.NetworkResourceType]bool

// newResourceFilter builds the filter for the configured names. Names are
// DevTools resource types, case-insensitive, singular or plural ("Image",
// "images"). Layout types are refused.
func newResourceFilter(names []string) (resourceFilter, error) {
	f := make(resourceFilter, len(names))
	for _, name := range names {
		t, ok := resourceType(name)
		if !ok {
			return nil, fmt.Errorf("render: unknown resource type %q", name)
		}
		if layoutTypes[t] {
			return nil, fmt.Errorf("render: %s requests decide visibility and cannot be blocked", t)
		}
		f[t] = true
	}
	return f, nil
}

// CheckBlockResources reports whether names can configure BlockResources.
func CheckBlockResources(names []string) error {
	_, err := newResourceFilter(names)
	return err
}

func resourceType(name string) (proto.NetworkResourceType, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, t := range resourceTypes {
		l := strings.ToLower(string(t))
		if n == l || n == l+"s" {
			return t, true
		}
	}
	return "", false
}

// install fails matching requests on page. The returned router must be
// stopped when the page closes.
func (f resourceFilter) install(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if f[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
