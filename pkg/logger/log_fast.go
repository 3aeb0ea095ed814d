package logger

import (
	"github.com/valyala/fasthttp"
)

// LogRequestFast logs a concise summary of an incoming fasthttp request.
// Used by the metrics exporter at debug level so scrapes stay quiet by
// default.
func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil {
		return
	}
	Debug("incoming_request", "method", string(ctx.Method()), "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String())
}
