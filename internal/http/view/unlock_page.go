package view

import (
	"bytes"
	"html/template"
)

// UnlockPageData fills the password prompt shown for gated links.
type UnlockPageData struct {
	Title     string
	Slug      string
	UnlockURL string
}

var unlockPageTmpl = template.Must(template.New("unlock_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			--danger: #fca5a5;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(440px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
		}
		h1 { font-size: 1.4rem; margin-bottom: 6px; }
		p { color: var(--muted); margin-top: 0; }
		input {
			width: 100%;
			height: 46px;
			margin: 18px 0 12px;
			padding: 0 16px;
			border-radius: 12px;
			border: 1px solid var(--border);
			background: rgba(0, 0, 0, 0.3);
			color: var(--text);
			font-size: 1rem;
		}
		button {
			width: 100%;
			height: 46px;
			border: 0;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			cursor: pointer;
		}
		button:disabled { opacity: 0.6; cursor: wait; }
		.error { color: var(--danger); min-height: 1.2em; margin-top: 12px; font-size: 0.9rem; }
	</style>
</head>
<body>
	<form class="card" id="unlock">
		<h1>Password required</h1>
		<p>The link <strong>/{{.Slug}}</strong> is protected. Enter its password to continue.</p>
		<input type="password" name="password" id="password" autocomplete="current-password" required minlength="4" autofocus />
		<button type="submit" id="submit">Unlock</button>
		<div class="error" id="error"></div>
	</form>

	<script>
		(function() {
			const form = document.getElementById("unlock");
			const submit = document.getElementById("submit");
			const errorBox = document.getElementById("error");
			const endpoint = {{.UnlockURL}};

			form.addEventListener("submit", async (event) => {
				event.preventDefault();
				submit.disabled = true;
				errorBox.textContent = "";
				try {
					const res = await fetch(endpoint, {
						method: "POST",
						headers: { "Content-Type": "application/json" },
						body: JSON.stringify({ password: document.getElementById("password").value })
					});
					const body = await res.json().catch(() => ({}));
					if (res.ok && body.target) {
						window.location.assign(body.target);
						return;
					}
					errorBox.textContent = body.error || "Unable to unlock link";
				} catch (err) {
					errorBox.textContent = "Network error, try again";
				}
				submit.disabled = false;
			});
		})();
	</script>
</body>
</html>
`))

// RenderUnlockPage expands the password prompt for slug.
func RenderUnlockPage(data UnlockPageData) (string, error) {
	if data.Title == "" {
		data.Title = "Password required"
	}
	var buf bytes.Buffer
	if err := unlockPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
