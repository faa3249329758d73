package render

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"

	"antiposta.dev/testserver/internal/core/request"
)

const htmlPage = `<!DOCTYPE html>
<html>
<head>
    <title>Antiposta Test Server Response</title>
    <style>
        body { font-family: sans-serif; margin: 20px; }
        h1 { color: #333; }
        pre { background-color: #f5f5f5; padding: 10px; border-radius: 5px; overflow: auto; }
        .method { color: #0066cc; font-weight: bold; }
        .path { color: #009900; }
        .header-name { color: #cc6600; font-weight: bold; }
        .header-value { color: #333; }
    </style>
</head>
<body>
    <h1>Request Details</h1>
    <p><span class="method">{{.Method}}</span> <span class="path">{{.Path}}</span> {{.HTTPVersion}}</p>
    <h2>Headers</h2>
    <ul>
        {{range .Headers}}<li><span class="header-name">{{.Name}}:</span> <span class="header-value">{{.Value}}</span></li>{{end}}
    </ul>
    <h2>Query Parameters</h2>
    <pre>{{.Query}}</pre>
    <h2>Body</h2>
    <pre>{{.Body}}</pre>
    <h2>Client Info</h2>
    <p>IP Address: {{.ClientIP}}</p>
    <p>Timestamp: {{.Timestamp}}</p>
    <p>Server: {{.Server}}</p>
</body>
</html>`

var (
	escapedPage = htmltemplate.Must(htmltemplate.New("response").Parse(htmlPage))
	rawPage     = texttemplate.Must(texttemplate.New("response").Parse(htmlPage))
)

type htmlView struct {
	Method      string
	Path        string
	HTTPVersion string
	Headers     request.Headers
	Query       string
	Body        string
	ClientIP    string
	Timestamp   string
	Server      string
}

func (r *Renderer) renderHTML(d *request.Description) ([]byte, error) {
	query, err := prettyJSON(d.Query)
	if err != nil {
		return nil, err
	}
	body, err := bodyText(d.Body)
	if err != nil {
		return nil, err
	}

	view := htmlView{
		Method:      d.Method.String(),
		Path:        d.Path,
		HTTPVersion: d.HTTPVersion,
		Headers:     d.Headers,
		Query:       string(query),
		Body:        body,
		ClientIP:    d.ClientIP,
		Timestamp:   r.humanTime(d.Timestamp),
		Server:      r.serverName(),
	}

	var buf bytes.Buffer
	if r.RawHTML {
		err = rawPage.Execute(&buf, view)
	} else {
		err = escapedPage.Execute(&buf, view)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
