package controllers

import (
	"net/http"
	"time"

	"membership-portal/web/db"

	"github.com/gin-gonic/gin"
)

const verifyPageStyle = `
<style>
    body { font-family: Arial, sans-serif; background: #f2f2f2; display: flex; justify-content: center; align-items: center; height: 100vh; }
    .container { background: #fff; padding: 40px; border-radius: 10px; box-shadow: 0 4px 10px rgba(0,0,0,0.1); text-align: center; max-width: 400px; }
    h2.err { color: #e74c3c; }
    h2.ok { color: #2ecc71; }
    p { color: #333; }
    a { display: inline-block; margin-top: 20px; padding: 10px 20px; color: #fff; background: #3498db; border-radius: 5px; text-decoration: none; }
</style>`

func verifyPage(title, class, heading, text, extra string) []byte {
	return []byte(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>` + title + `</title>` + verifyPageStyle + `
</head>
<body>
<div class="container">
<h2 class="` + class + `">` + heading + `</h2>
<p>` + text + `</p>` + extra + `
</div>
</body>
</html>`)
}

func VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
			verifyPage("Verification Error", "err", "Token is required",
				"Please check your email link and try again.", ""))
		return
	}

	var user db.User
	result := db.DB.First(&user, "verify_token = ?", token)
	if result.Error != nil {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
			verifyPage("Verification Error", "err", "Invalid token",
				"The verification link is invalid. Please sign up again.", ""))
		return
	}

	if user.TokenExpiry.Before(time.Now()) {
		db.DB.Delete(&user)
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
			verifyPage("Token Expired", "err", "Token expired",
				"Your verification link has expired. Please sign up again.", ""))
		return
	}

	user.IsVerified = true
	user.VerifyToken = ""
	db.DB.Save(&user)

	c.Data(http.StatusOK, "text/html; charset=utf-8",
		verifyPage("Email Verified", "ok", "Email Verified!",
			"Your email has been successfully verified. You can now log in.",
			`<a href="/login">Go to Login</a>`))
}
