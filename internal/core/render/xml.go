package render

import (
	"encoding/xml"

	"antiposta.dev/testserver/internal/core/request"
)

type xmlResponse struct {
	XMLName    xml.Name      `xml:"response"`
	Request    xmlRequest    `xml:"request"`
	Headers    xmlHeaders    `xml:"headers"`
	Query      xmlQuery      `xml:"queryParameters"`
	Body       xmlBody       `xml:"body"`
	ClientInfo xmlClientInfo `xml:"clientInfo"`
}

type xmlRequest struct {
	Method      string `xml:"method"`
	Path        string `xml:"path"`
	HTTPVersion string `xml:"httpVersion"`
}

type xmlHeaders struct {
	Header []xmlPair `xml:"header"`
}

type xmlQuery struct {
	Parameter []xmlPair `xml:"parameter"`
}

type xmlPair struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type xmlBody struct {
	Text string    `xml:",chardata"`
	Item []xmlItem `xml:"item"`
}

type xmlItem struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

type xmlClientInfo struct {
	IP        string `xml:"ip"`
	Timestamp string `xml:"timestamp"`
	Server    string `xml:"server"`
}

func (r *Renderer) renderXML(d *request.Description) ([]byte, error) {
	doc := xmlResponse{
		Request: xmlRequest{
			Method:      d.Method.String(),
			Path:        d.Path,
			HTTPVersion: d.HTTPVersion,
		},
		ClientInfo: xmlClientInfo{
			IP:        d.ClientIP,
			Timestamp: r.humanTime(d.Timestamp),
			Server:    r.serverName(),
		},
	}

	for _, h := range d.Headers {
		doc.Headers.Header = append(doc.Headers.Header, xmlPair{Name: h.Name, Value: h.Value})
	}
	d.Query.Each(func(name string, values []string) {
		for _, v := range values {
			doc.Query.Parameter = append(doc.Query.Parameter, xmlPair{Name: name, Value: v})
		}
	})

	body, err := xmlBodyOf(d.Body)
	if err != nil {
		return nil, err
	}
	doc.Body = body

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// xmlBodyOf lists object-like bodies as key/value items and renders anything
// else as element text.
func xmlBodyOf(b request.Body) (xmlBody, error) {
	var out xmlBody

	switch v := b.Value().(type) {
	case nil:
	case *request.Object:
		var err error
		v.Each(func(key string, value any) {
			if err != nil {
				return
			}
			var text string
			text, err = scalarText(value)
			out.Item = append(out.Item, xmlItem{Key: key, Value: text})
		})
		return out, err
	case request.Values:
		var err error
		v.Each(func(name string, values []string) {
			if err != nil {
				return
			}
			var text string
			text, err = compactJSON(values)
			out.Item = append(out.Item, xmlItem{Key: name, Value: text})
		})
		return out, err
	default:
		text, err := scalarText(v)
		if err != nil {
			return out, err
		}
		out.Text = text
	}
	return out, nil
}
