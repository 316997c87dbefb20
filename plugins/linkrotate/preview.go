package linkrotate

import (
	"strings"

	"linkguard/internal/rotation"
	"linkguard/pkg/logx"
)

// previewSources feed the real renderer with dummy data so the operator
// sees how the template behaves with aliased, unaliased and failed sources.
var previewSources = []rotation.Source{
	{ID: "@source_group_1", Alias: "Main Chat Alias"},
	{ID: "@source_group_2"},
	{ID: "@source_group_3", Alias: "Another Alias"},
}

func previewResults() []rotation.LinkResult {
	return []rotation.LinkResult{
		{Source: previewSources[0], Link: "t.me/joinchat/DUMMYINVITE123"},
		{Source: previewSources[1], Link: "t.me/joinchat/DUMMYINVITE456"},
		{Source: previewSources[2], Err: errPreviewUnavailable},
	}
}

type previewErr string

func (e previewErr) Error() string { return string(e) }

const errPreviewUnavailable = previewErr("link generation failed")

func templatePreview(template string, log logx.Logger) string {
	rendered := rotation.Render(template, previewSources, previewResults(), log)

	var b strings.Builder
	b.WriteString("📝 <b>Template Set</b>\n")
	b.WriteString("<b>Raw</b>: <code>" + template + "</code>\n\n")
	b.WriteString("<b>Preview with dummy data</b>:\n")
	b.WriteString(rendered)
	return b.String()
}
