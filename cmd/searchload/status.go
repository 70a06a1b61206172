package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ananya-mh/searchload/internal/runner"
)

// statusCodeFor picks the status bucket for a failed request: the HTTP code
// when one arrived, TIMEOUT for timeouts, otherwise the error's type name.
func statusCodeFor(status int, err error) string {
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	if status > 0 {
		return strconv.Itoa(status)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "TIMEOUT"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return sanitizeStatusCode(opErr.Op + "_error")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	return fallbackStatusCode(err)
}

func sanitizeStatusCode(status string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", ".", "_", "-", "_")
	normalized := strings.Trim(strings.ToUpper(replacer.Replace(strings.TrimSpace(status))), "_")
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}

func fallbackStatusCode(err error) string {
	if err == nil {
		return ""
	}
	typeName := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if idx := strings.LastIndexAny(typeName, "/."); idx != -1 {
		typeName = typeName[idx+1:]
	}
	return sanitizeStatusCode(typeName)
}
