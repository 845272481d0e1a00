package httpapi

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"github.com/gothamair/airpulse/internal/aq"
)

// registerDashboard wires the HTML presentation routes. The dashboard is a
// server-rendered page over the same pipeline the JSON API uses; the map is
// a separate embed so the page works without the Maps key.
func registerDashboard(app *fiber.App, deps Deps) {
	app.Get("/dashboard", func(c *fiber.Ctx) error {
		req, err := parseSearchQuery(c, deps)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rs, err := runPipeline(c, deps, req)
		if err != nil {
			return err
		}

		summary := aq.Summarize(rs)
		data := dashboardData{
			Request:     req,
			Readings:    rs.Readings,
			Summary:     summary,
			Advice:      aq.AdviceFor(req.Pollutant, summary.Average),
			Skipped:     rs.Skipped,
			MapsEnabled: deps.MapsAPIKey != "",
			MapURL: fmt.Sprintf("/dashboard/map?lat=%f&lon=%f&radius_km=%d&pollutant=%s",
				req.Center.Latitude, req.Center.Longitude, req.RadiusKM, req.Pollutant.Key),
		}
		return renderHTML(c, dashboardTmpl, data)
	})

	app.Get("/dashboard/map", func(c *fiber.Ctx) error {
		if deps.MapsAPIKey == "" {
			return fiber.NewError(fiber.StatusNotFound, "map rendering is not configured")
		}

		req, err := parseSearchQuery(c, deps)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rs, err := runPipeline(c, deps, req)
		if err != nil {
			return err
		}

		markers := make([]mapMarker, 0, len(rs.Readings))
		for _, r := range rs.Readings {
			val := "N/A"
			if r.Value != nil {
				val = fmt.Sprintf("%g %s", *r.Value, r.Unit)
			}
			markers = append(markers, mapMarker{
				Lat:   r.Coordinate.Latitude,
				Lng:   r.Coordinate.Longitude,
				Title: r.LocationName,
				Val:   val,
			})
		}

		return renderHTML(c, mapTmpl, mapData{
			APIKey:  deps.MapsAPIKey,
			Center:  req.Center,
			Markers: markers,
		})
	})
}

func renderHTML(c *fiber.Ctx, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render page")
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

type dashboardData struct {
	Request     aq.SearchRequest
	Readings    []aq.Reading
	Summary     aq.Summary
	Advice      aq.Advice
	Skipped     int
	MapsEnabled bool
	MapURL      string
}

type mapMarker struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Title string  `json:"title"`
	Val   string  `json:"val"`
}

type mapData struct {
	APIKey  string
	Center  aq.Coordinate
	Markers []mapMarker
}

var tmplFuncs = template.FuncMap{
	"fmtValue": func(v *float64) string {
		if v == nil {
			return "N/A"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"fmt1": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Air-Pulse</title>
<style>
  body {
    margin: 0; padding: 2rem; font-family: sans-serif; color: #e0e0e0;
    background: radial-gradient(circle at top left, #202433 0, #050609 55%);
    min-height: 100vh;
  }
  h1 { margin-top: 0; }
  .caption { color: #868aa0; margin-bottom: 2rem; }
  .cards { display: flex; gap: 1rem; }
  .metric-card {
    flex: 1; padding: 1.2rem; border-radius: 10px;
    background: rgba(30, 35, 50, 0.6); border: 1px solid rgba(255, 255, 255, 0.1);
  }
  .metric-label { font-size: 0.85rem; text-transform: uppercase; letter-spacing: 0.1em; color: #a0a5b9; }
  .metric-value { font-size: 2rem; font-weight: 700; color: #ffffff; }
  .advice-box {
    padding: 1.5rem; border-radius: 8px; background: rgba(255, 255, 255, 0.05);
    border-left: 5px solid; margin-top: 1rem;
  }
  .advice-green { border-color: #00cc66; }
  .advice-yellow { border-color: #ffcc00; }
  .advice-red { border-color: #ff3333; }
  table { width: 100%; border-collapse: collapse; margin-top: 1.5rem; }
  th, td { text-align: left; padding: 10px 12px; border-bottom: 1px solid #333a4d; }
  th { background: rgba(0, 0, 0, 0.2); color: #a0a5b9; }
  iframe { border: 0; width: 100%; height: 520px; border-radius: 12px; margin-top: 1.5rem; }
  .clinical { margin-top: 2rem; padding: 1rem 1.5rem; border-radius: 8px; background: rgba(30, 35, 50, 0.6); color: #afb4c6; }
  .note { color: #868aa0; margin-top: 1rem; }
</style>
</head>
<body>
<h1>Air-Pulse</h1>
<div class="caption">Actionable air quality intelligence for the urban commuter.</div>

{{if .Readings}}
<div class="cards">
  <div class="metric-card"><div class="metric-label">Avg Level</div><div class="metric-value">{{fmt1 .Summary.Average}} {{.Request.Pollutant.Unit}}</div></div>
  <div class="metric-card"><div class="metric-label">Peak Hotspot</div><div class="metric-value">{{fmt1 .Summary.Peak}} {{.Request.Pollutant.Unit}}</div></div>
  <div class="metric-card"><div class="metric-label">Cleanest Spot</div><div class="metric-value">{{fmt1 .Summary.Minimum}} {{.Request.Pollutant.Unit}}</div></div>
</div>

<div class="advice-box advice-{{.Advice.Level}}">
  <h3 style="margin-top:0;">Commuter Health Guide</h3>
  <p>{{.Advice.Text}}</p>
</div>

{{if .MapsEnabled}}
<iframe src="{{.MapURL}}"></iframe>
{{else}}
<p class="note">Map rendering is not configured; showing the data table only.</p>
{{end}}

<table>
  <tr><th>Location</th><th>Value</th><th>Unit</th><th>Time</th><th>Latitude</th><th>Longitude</th></tr>
  {{range .Readings}}
  <tr>
    <td>{{.LocationName}}</td>
    <td>{{fmtValue .Value}}</td>
    <td>{{.Unit}}</td>
    <td>{{.ObservedAt}}</td>
    <td>{{.Coordinate.Latitude}}</td>
    <td>{{.Coordinate.Longitude}}</td>
  </tr>
  {{end}}
</table>
{{if .Skipped}}<p class="note">{{.Skipped}} location(s) had no usable reading and were skipped.</p>{{end}}

<div class="clinical">
  <strong>{{.Request.Pollutant.ClinicalTitle}}:</strong> {{.Request.Pollutant.ClinicalText}}
</div>
{{else}}
<p class="note">No sensors found in this area. Try increasing the radius.</p>
{{end}}
</body>
</html>
`))

var mapTmpl = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<script src="https://maps.googleapis.com/maps/api/js?key={{.APIKey}}"></script>
<script>
  function initMap() {
    var center = {lat: {{.Center.Latitude}}, lng: {{.Center.Longitude}}};

    var darkStyle = [
      {elementType: 'geometry', stylers: [{color: '#242f3e'}]},
      {elementType: 'labels.text.stroke', stylers: [{color: '#242f3e'}]},
      {elementType: 'labels.text.fill', stylers: [{color: '#746855'}]},
      {featureType: 'road', elementType: 'geometry', stylers: [{color: '#38414e'}]},
      {featureType: 'road', elementType: 'geometry.stroke', stylers: [{color: '#212a37'}]},
      {featureType: 'water', elementType: 'geometry', stylers: [{color: '#17263c'}]}
    ];

    var map = new google.maps.Map(document.getElementById('map'), {
      zoom: 11,
      center: center,
      styles: darkStyle,
      disableDefaultUI: true
    });

    var infowindow = new google.maps.InfoWindow();
    var markers = {{.Markers}};

    markers.forEach(function(m) {
      var marker = new google.maps.Marker({
        position: {lat: m.lat, lng: m.lng},
        map: map,
        title: m.title
      });

      marker.addListener('click', function() {
        infowindow.setContent(
          '<div style="color:black; font-family:sans-serif;"><b>' + m.title + '</b><br>Pollution: ' + m.val + '</div>'
        );
        infowindow.open(map, marker);
      });
    });
  }
</script>
<style>
  #map { height: 500px; width: 100%; border-radius: 12px; }
  body { margin: 0; padding: 0; background: transparent; }
</style>
</head>
<body onload="initMap()">
<div id="map"></div>
</body>
</html>
`))
