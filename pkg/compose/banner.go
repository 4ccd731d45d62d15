package compose

import (
	"strings"
	"time"

	"github.com/aymerick/raymond"
)

// DoNotEditNotice is the banner line telling readers the file is generated.
const DoNotEditNotice = "-- THIS IS A RELEASE FILE. DO NOT EDIT THIS FILE DIRECTLY. EDIT SOURCE FILES AND REBUILD."

var bannerTemplate = raymond.MustParse(`-- Combined and Sanitized Lua script generated on {{{timestamp}}}
{{{notice}}}
{{#if header}}-- Header File: {{{header}}}
{{/if}}{{#if dependencies}}-- External Dependencies: {{dependencies}} loaded
{{/if}}-- Namespace File: {{{namespace}}}
-- Entrypoint File: {{{entrypoint}}}
{{#if footer}}-- Footer File: {{{footer}}}
{{/if}}-- Core Module Count: {{coreCount}}
-- Core Modules Order: {{{order}}}
-- Scope: {{scope}}
`)

func renderBanner(in Input, now time.Time) (string, error) {
	order := "None"
	if len(in.Core) > 0 {
		ids := make([]string, len(in.Core))
		for i, m := range in.Core {
			ids[i] = m.ID
		}
		order = strings.Join(ids, ", ")
	}
	data := map[string]interface{}{
		"timestamp":    now.UTC().Format(time.RFC3339),
		"notice":       DoNotEditNotice,
		"dependencies": len(in.Dependencies),
		"namespace":    in.Namespace.Path,
		"entrypoint":   in.Entrypoint.Path,
		"coreCount":    len(in.Core),
		"order":        order,
		"scope":        string(in.Scope),
	}
	if in.Header != nil {
		data["header"] = in.Header.Path
	}
	if in.Footer != nil {
		data["footer"] = in.Footer.Path
	}
	return bannerTemplate.Exec(data)
}
