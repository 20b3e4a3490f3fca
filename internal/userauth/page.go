package userauth

import "html/template"

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Log in</title>
</head>
<body>
  <h1>Log in</h1>
  <p><a href="{{.StartURL}}">Log in with Twitch</a></p>
</body>
</html>
`))

type loginPageData struct {
	StartURL string
}
