package api

import "html/template"

// Visitor-facing pages for the resolution flow. The passcode form
// resubmits with GET to the same /s/{slug} path, so a known passcode can
// also be supplied directly as ?passcode=... on the short URL.
const pageTemplates = `
{{define "challenge.html"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Passcode required</title>
</head>
<body>
<main class="challenge">
<h1>Passcode required</h1>
<p>This short link is protected. Ask the owner for the passcode and enter it below to continue.</p>
{{if .Invalid}}<p class="error">That passcode didn&#39;t work. Try again.</p>{{end}}
<form action="/s/{{.Slug}}" method="GET">
<input type="password" name="passcode" placeholder="Enter passcode" required>
<button type="submit">Unlock link</button>
</form>
<p class="hint">Hint: you can append <code>?passcode=secret</code> to the URL if you already know it.</p>
</main>
</body>
</html>{{end}}

{{define "expired.html"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Short link expired</title>
</head>
<body>
<main class="expired">
<h1>Short link expired</h1>
{{if .Slug}}<p>The link <strong>/s/{{.Slug}}</strong> is no longer active.</p>{{else}}<p>This short link is no longer active.</p>{{end}}
<p>Create a fresh short link or reach out to the owner if you need renewed access.</p>
</main>
</body>
</html>{{end}}

{{define "notfound.html"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Link not found</title>
</head>
<body>
<main class="notfound">
<h1>Link not found</h1>
<p>There is no short link here. Check the address or ask the owner for a fresh one.</p>
</main>
</body>
</html>{{end}}
`

// PageTemplates parses the visitor-facing page templates for the router.
func PageTemplates() *template.Template {
	return template.Must(template.New("pages").Parse(pageTemplates))
}
