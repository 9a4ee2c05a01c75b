package templates

const stylesheet = `
* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, -apple-system, "Segoe UI", sans-serif; background: #f4f6fa; color: #1f2933; }
.layout { display: flex; min-height: 100vh; }
.sidebar { width: 280px; padding: 1.5rem; background: #fff; border-right: 1px solid #e4e7eb; }
.sidebar label { display: block; margin: 1rem 0 .25rem; font-weight: 600; font-size: .85rem; }
.sidebar select, .sidebar input { width: 100%; margin-bottom: .5rem; }
main { flex: 1; padding: 1.5rem 2rem; }
.subtitle, .muted { color: #616e7c; }
.metrics { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1rem; margin-bottom: 1.5rem; }
.metric { background: #fff; border-radius: 8px; padding: 1rem; box-shadow: 0 1px 2px rgba(0,0,0,.06); }
.metric .label { display: block; font-size: .8rem; color: #616e7c; }
.metric .value { font-size: 1.6rem; font-weight: 700; }
.panel { background: #fff; border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 1.5rem; }
.chart-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; }
.chart-grid > div, .chart-stack > div { min-height: 320px; }
.forecast .info { background: #e6f6ff; padding: .75rem; border-radius: 6px; }
.table-wrap { overflow-x: auto; max-height: 420px; }
.modern-table { border-collapse: collapse; font-size: .8rem; width: 100%; }
.modern-table th, .modern-table td { padding: .35rem .5rem; border-bottom: 1px solid #e4e7eb; white-space: nowrap; }
.downloads a { margin-right: 1rem; }
`

// clientScript draws chart specifications with Plotly. Charts are redrawn
// whenever the SSE handler patches the chart signals.
const clientScript = `
function filterQuery(regions, categories, subCategories, start, end) {
  const q = new URLSearchParams();
  (regions || []).forEach(v => q.append("region", v));
  (categories || []).forEach(v => q.append("category", v));
  (subCategories || []).forEach(v => q.append("sub_category", v));
  if (start) q.set("start", start);
  if (end) q.set("end", end);
  return q.toString();
}

function traceFor(chart) {
  const labels = chart.points.map(p => p.label);
  const ys = chart.points.map(p => p.y);
  switch (chart.kind) {
  case "line": return { type: "scatter", mode: "lines+markers", x: labels, y: ys };
  case "bar": return { type: "bar", x: labels, y: ys };
  case "barh": return { type: "bar", orientation: "h", x: ys.slice().reverse(), y: labels.slice().reverse() };
  case "scatter": return { type: "scatter", mode: "markers", x: chart.points.map(p => p.x || 0), y: ys, marker: { size: 6, opacity: 0.6 } };
  case "treemap": {
    const parents = [...new Set(chart.points.map(p => p.parent))];
    return {
      type: "treemap", branchvalues: "remainder",
      labels: parents.concat(chart.points.map(p => p.parent + " / " + p.label)),
      parents: parents.map(() => "").concat(chart.points.map(p => p.parent)),
      values: parents.map(() => 0).concat(ys),
    };
  }
  }
  return {};
}

function renderCharts(containerId, charts) {
  const root = document.getElementById(containerId);
  if (!root || !window.Plotly) return;
  root.replaceChildren();
  (charts || []).forEach(chart => {
    const el = document.createElement("div");
    el.id = containerId + "-" + chart.id;
    root.appendChild(el);
    Plotly.newPlot(el, [traceFor(chart)], { title: chart.title, margin: { t: 40 } }, { responsive: true });
  });
}

function renderForecast(containerId, forecast) {
  const el = document.getElementById(containerId);
  if (!el || !window.Plotly) return;
  if (!forecast) { Plotly.purge(el); el.replaceChildren(); return; }
  Plotly.newPlot(el, [
    { type: "scatter", name: "Actual Sales", x: forecast.actual.map(p => p.date), y: forecast.actual.map(p => p.value) },
    { type: "scatter", name: "Forecast", line: { dash: "dot" }, x: forecast.forecast.map(p => p.date), y: forecast.forecast.map(p => p.value) },
  ], { margin: { t: 20 } }, { responsive: true });
}
`
