package server

import (
	"fmt"
	"strconv"
)

// reloadClientJS is injected into every served HTML page. It reconnects
// after the server restarts and swaps stylesheets in place on css_update.
const reloadClientJS = `(function () {
  var endpoint = %s;
  var notify = %s;

  function toast(text) {
    if (!notify) { return; }
    var el = document.createElement("div");
    el.textContent = text;
    el.style.cssText = "position:fixed;top:0;right:0;z-index:2147483647;" +
      "padding:10px 14px;margin:8px;background:#1b1b1b;color:#fff;" +
      "font:13px/1.4 sans-serif;border-radius:4px;opacity:.9";
    document.body.appendChild(el);
    setTimeout(function () { el.remove(); }, 1500);
  }

  function swapCSS(target) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    var swapped = false;
    links.forEach(function (link) {
      var url = new URL(link.href, window.location.href);
      if (url.pathname !== target) { return; }
      url.searchParams.set("v", Date.now().toString());
      link.href = url.toString();
      swapped = true;
    });
    if (swapped) { toast("Injected " + target); }
  }

  function connect() {
    var proto = window.location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + window.location.host + endpoint);

    ws.onmessage = function (event) {
      var message = JSON.parse(event.data);
      switch (message.type) {
        case "full_reload":
          toast("Reloading");
          window.location.reload();
          break;
        case "css_update":
          swapCSS(message.target);
          break;
      }
    };

    ws.onopen = function () { toast("Connected to assetpipe"); };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }

  connect();
})();`

func (s *DevServer) clientScript() string {
	return fmt.Sprintf(reloadClientJS, strconv.Quote(routeWS), strconv.FormatBool(s.cfg.Notify))
}
