package server

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fileHandler serves the output directory. HTML documents get the reload
// client appended to their <body>.
func (s *DevServer) fileHandler() http.Handler {
	files := http.FileServer(http.Dir(s.root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if name, ok := s.htmlFile(r.URL.Path); ok {
				s.serveHTML(w, r, name)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}

// htmlFile maps a request path onto an HTML file under root.
func (s *DevServer) htmlFile(urlPath string) (string, bool) {
	p := path.Clean("/" + urlPath)
	if strings.HasSuffix(urlPath, "/") {
		p = path.Join(p, "index.html")
	}
	if ext := path.Ext(p); ext != ".html" && ext != ".htm" {
		return "", false
	}

	name := filepath.Join(s.root, filepath.FromSlash(p))
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return name, true
}

func (s *DevServer) serveHTML(w http.ResponseWriter, r *http.Request, name string) {
	src, err := os.ReadFile(name)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	out, err := InjectScript(src, s.clientScript())
	if err != nil {
		s.logger.Warn(r.Context(), err, "Serving page without live reload", "file", name)
		out = src
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(out)
}

// InjectScript appends an inline <script> holding js to the document body.
func InjectScript(src []byte, js string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, errors.New("document has no body")
	}

	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: js})
	body.AppendChild(script)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
