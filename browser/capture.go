package browser

import (
	"log/slog"
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/openadlib/adlib/cards"
	"github.com/openadlib/adlib/models"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

func blockedSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// setupCapture installs a single interceptor doing double duty: it drops the
// configured heavy resource types, and it inspects XHR/fetch responses for
// search payloads, queueing every envelope match as a capture batch.
//
// Pattern "*" + empty resourceType intercepts every request; the handler
// decides per-request. Returns the running router so Close can stop it.
func (s *Session) setupCapture(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, drop := s.blocked[ctx.Request.Type()]; drop {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		typ := ctx.Request.Type()
		if typ != proto.NetworkResourceTypeXHR && typ != proto.NetworkResourceTypeFetch {
			ctx.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}

		// Perform the request ourselves so the body is readable. Once
		// loaded, returning from the handler delivers it to the page.
		if err := ctx.LoadResponse(http.DefaultClient, true); err != nil {
			slog.Debug("capture: load response failed",
				"url", ctx.Request.URL().String(), "error", err)
			ctx.Response.Fail(proto.NetworkErrorReasonConnectionFailed)
			return
		}

		body := ctx.Response.Payload().Body
		if !s.envelope(body) {
			return
		}

		records := cards.Decode(body)
		if len(records) == 0 {
			return
		}

		s.mu.Lock()
		s.pending = append(s.pending, &models.RecordBatch{
			Records: records,
			Source:  models.SourceCapture,
		})
		s.mu.Unlock()

		select {
		case s.notify <- struct{}{}:
		default:
		}

		slog.Debug("captured search payload",
			"records", len(records),
			"url", ctx.Request.URL().String(),
		)
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}
