package api

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"incident-review/internal/models"
	"incident-review/internal/playback"
	"incident-review/internal/websocket"
)

var funcMap = template.FuncMap{
	"seconds": func(t float64) string { return fmt.Sprintf("%.1fs", t) },
	"speed":   func(v float64) string { return fmt.Sprintf("%.0f mph", v) },
	"pct":     func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(funcMap).Parse(dashboardHTML))

type dashboardData struct {
	Incident models.Incident
	Frame    websocket.FramePayload
	SkipStep float64
	Resync   float64
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{
		Incident: s.incident,
		Frame:    s.frame(s.session.Clock.CurrentTime()),
		SkipStep: playback.SkipStep,
		Resync:   playback.ResyncThreshold,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		slog.Error("render dashboard", "error", err)
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Incident.Title}} {{.Incident.CaseNumber}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #0f172a; color: #e2e8f0; }
header { padding: 12px 20px; border-bottom: 1px solid #1e293b; }
main { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; padding: 16px 20px; }
section { background: #1e293b; border-radius: 8px; padding: 12px; }
video { width: 100%; border-radius: 6px; background: #000; }
.cards { display: flex; gap: 12px; }
.card { flex: 1; background: #0f172a; border-radius: 6px; padding: 8px; }
.card .value { font-size: 1.6em; font-weight: 600; }
table { width: 100%; border-collapse: collapse; font-size: 0.85em; }
td, th { padding: 2px 6px; text-align: right; }
tr.current { background: #334155; }
.report { border-left: 3px solid #475569; padding: 4px 8px; margin-bottom: 6px; }
.report.current { border-color: #f59e0b; }
.notice { color: #94a3b8; font-style: italic; }
#chat-log { height: 220px; overflow-y: auto; font-size: 0.9em; }
.msg.assistant { color: #93c5fd; }
</style>
</head>
<body>
<header>
  <strong>{{.Incident.Title}}</strong> {{.Incident.CaseNumber}}
  <span id="clock">{{seconds .Frame.CurrentTime}}</span>
</header>
<main>
  <div>
    <section>
      <video id="video" src="{{.Incident.VideoURL}}" preload="metadata"></video>
      <div>
        <button id="back">-{{.SkipStep}}s</button>
        <button id="toggle">Play/Pause</button>
        <button id="fwd">+{{.SkipStep}}s</button>
      </div>
    </section>
    <section>
      <div class="cards" id="cards">
      {{if .Frame.Found}}
        {{range .Frame.Cards}}<div class="card"><div>{{.Label}}</div><div class="value">{{.Value}}</div></div>{{end}}
      {{else}}
        <div class="notice">{{.Frame.Notice}}</div>
      {{end}}
      </div>
    </section>
    <section>
      <img id="chart" src="/api/v1/chart.svg" alt="speed, impact and brake force" width="100%">
    </section>
    <section>
      <table>
        <thead><tr><th>Time</th><th>Speed</th><th>Brake</th><th>Impact</th><th>Autopilot</th><th>Airbag</th></tr></thead>
        <tbody id="rows">
        {{range .Frame.Table.Rows}}
          <tr{{if .Current}} class="current"{{end}}><td>{{seconds .Timestamp}}</td><td>{{speed .Speed}}</td><td>{{pct .BrakeForce}}</td><td>{{printf "%.1f" .ImpactForce}}</td><td>{{yesno .AutopilotActive}}</td><td>{{yesno .AirbagDeployed}}</td></tr>
        {{end}}
        </tbody>
      </table>
    </section>
  </div>
  <div>
    <section id="reports">
    {{range .Frame.Reports}}
      <div class="report{{if .Current}} current{{end}}"><strong>{{.Name}}</strong> {{seconds .Timestamp}} {{.Credibility}}<div>{{.Statement}}</div></div>
    {{else}}
      <div class="notice">{{.Frame.ReportsNote}}</div>
    {{end}}
    </section>
    <section>
      <div id="chat-log"></div>
      <form id="chat-form"><input id="chat-input" placeholder="Ask about this moment" autocomplete="off"><button>Send</button></form>
    </section>
  </div>
</main>
<script>
const RESYNC = {{.Resync}};
const SKIP = {{.SkipStep}};
const video = document.getElementById('video');
let ws, chatSession;

function esc(s) { const d = document.createElement('div'); d.textContent = s == null ? '' : s; return d.innerHTML; }
function yesno(b) { return b ? 'Yes' : 'No'; }

function render(f) {
  document.getElementById('clock').textContent = f.current_time.toFixed(1) + 's';
  document.getElementById('cards').innerHTML = f.found
    ? f.cards.map(c => '<div class="card"><div>' + esc(c.label) + '</div><div class="value">' + esc(c.value) + '</div></div>').join('')
    : '<div class="notice">' + esc(f.notice) + '</div>';
  document.getElementById('rows').innerHTML = f.table.rows.map(r =>
    '<tr' + (r.current ? ' class="current"' : '') + '><td>' + r.timestamp.toFixed(1) + 's</td><td>' + r.speed.toFixed(0) +
    ' mph</td><td>' + Math.round(r.brakeForce * 100) + '%</td><td>' + r.impact_force.toFixed(1) + '</td><td>' +
    yesno(r.autopilotActive) + '</td><td>' + yesno(r.airbag_deployed) + '</td></tr>').join('');
  document.getElementById('reports').innerHTML = f.reports.length
    ? f.reports.map(r => '<div class="report' + (r.current ? ' current' : '') + '"><strong>' + esc(r.name) + '</strong> ' +
        r.timestamp.toFixed(1) + 's<div>' + esc(r.statement) + '</div></div>').join('')
    : '<div class="notice">' + esc(f.reports_notice) + '</div>';
  if (Math.abs(video.currentTime - f.current_time) > RESYNC) {
    video.currentTime = f.current_time;
  }
}

function send(msg) { if (ws && ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg)); }

function connect() {
  ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = e => {
    const m = JSON.parse(e.data);
    if (m.type === 'frame') render(m.data);
  };
  ws.onclose = () => setTimeout(connect, 2000);
}

video.addEventListener('timeupdate', () => send({type: 'timeupdate', time: video.currentTime, paused: video.paused}));
video.addEventListener('seeked', () => send({type: 'seek', time: video.currentTime}));
document.getElementById('toggle').onclick = () => { video.paused ? video.play() : video.pause(); };
document.getElementById('back').onclick = () => { video.currentTime -= SKIP; };
document.getElementById('fwd').onclick = () => { video.currentTime += SKIP; };

function addMessage(m) {
  const log = document.getElementById('chat-log');
  log.insertAdjacentHTML('beforeend', '<div class="msg ' + m.role + '">' + esc(m.content) + '</div>');
  log.scrollTop = log.scrollHeight;
}

async function startChat() {
  const res = await fetch('/api/v1/chat/sessions', {method: 'POST'});
  const body = await res.json();
  chatSession = body.data.session.id;
  body.data.messages.forEach(addMessage);
}

document.getElementById('chat-form').onsubmit = async e => {
  e.preventDefault();
  const input = document.getElementById('chat-input');
  const content = input.value.trim();
  if (!content || !chatSession) return;
  input.value = '';
  const res = await fetch('/api/v1/chat/sessions/' + chatSession + '/messages', {
    method: 'POST', headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({content: content, time: video.currentTime}),
  });
  const body = await res.json();
  if (body.success) { addMessage(body.data.user); addMessage(body.data.assistant); }
};

connect();
startChat();
</script>
</body>
</html>
`
