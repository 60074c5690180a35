package server

import (
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ViewerConfig configures the viewer page.
type ViewerConfig struct {
	Title string
}

// renderViewer fills the page template. body is the current document and
// is inserted as is.
func renderViewer(cfg ViewerConfig, body string) string {
	title := cfg.Title
	if title == "" {
		title = "Panel"
	}
	page := viewerHTML
	page = strings.ReplaceAll(page, "{{TITLE}}", html.EscapeString(title))
	page = strings.ReplaceAll(page, "{{BODY}}", body)
	return page
}

func (s *Server) handleViewer(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8",
		[]byte(renderViewer(s.cfg.Viewer, s.panel.Latest().HTML)))
}

// viewerHTML is the single-page viewer. It replaces the panel markup on
// every document message and reports presses on .button elements.
const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1, user-scalable=no">
<title>{{TITLE}}</title>
<style>
html, body { margin: 0; padding: 0; background: #000; overflow: hidden; }
#panel { position: relative; touch-action: none; user-select: none; }
#panel .page, #panel .popup { position: absolute; overflow: hidden; }
#panel .button { position: absolute; overflow: hidden; cursor: pointer; }
#panel .backdrop { position: absolute; left: 0; top: 0; width: 100vw; height: 100vh; background: rgba(0,0,0,0.4); }
#status { position: fixed; right: 6px; bottom: 4px; font: 11px sans-serif; color: #888; }
</style>
</head>
<body>
<div id="panel">{{BODY}}</div>
<div id="status">connecting</div>
<script>
(function () {
  var panel = document.getElementById('panel');
  var status = document.getElementById('status');
  var token = new URLSearchParams(location.search).get('token');
  var url = (location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws' +
    (token ? '?token=' + encodeURIComponent(token) : '');
  var ws = null;
  var version = 0;
  var active = null;

  function send(type, payload) {
    if (ws && ws.readyState === 1) ws.send(JSON.stringify({ type: type, payload: payload }));
  }

  function connect() {
    ws = new WebSocket(url);
    ws.onopen = function () { status.textContent = ''; };
    ws.onclose = function () {
      status.textContent = 'offline';
      setTimeout(connect, 2000);
    };
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === 'document' && msg.payload.version >= version) {
        version = msg.payload.version;
        panel.innerHTML = msg.payload.html;
      } else if (msg.type === 'error') {
        console.warn('panel:', msg.payload.message);
      }
    };
  }

  panel.addEventListener('pointerdown', function (ev) {
    var b = ev.target.closest('.button');
    if (!b) return;
    active = b.id;
    send('pointer', { id: active, phase: 'down' });
  });
  window.addEventListener('pointerup', function () {
    if (!active) return;
    send('pointer', { id: active, phase: 'up' });
    active = null;
  });
  window.addEventListener('keydown', function (ev) {
    if (ev.key.length === 1) send('keyboard', { text: ev.key });
  });
  setInterval(function () { send('ping'); }, 25000);
  connect();
})();
</script>
</body>
</html>
`
