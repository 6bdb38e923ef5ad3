package controllers

import (
	"net/http"
	"os"
	"time"

	"membership-portal/web/db"
	"membership-portal/web/email"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func Signup(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Woreda   string `json:"woreda"`
		Region   string `json:"region"`
	}

	if c.Bind(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read body",
		})
		return
	}

	if body.Email == "" || body.Password == "" || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Name, email and password are required",
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), 10)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to hash password.",
		})
		return
	}

	user := db.User{
		Email:    body.Email,
		Password: string(hash),
		Name:     body.Name,
		Phone:    body.Phone,
		Woreda:   body.Woreda,
		Region:   body.Region,
		Role:     db.RoleMember,

		MembershipStatus: db.MembershipPending,

		IsVerified:  false,
		VerifyToken: uuid.New().String(),
		TokenExpiry: time.Now().Add(24 * time.Hour), // token valid for 24 hours
	}

	result := db.DB.Create(&user)
	if result.Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to create user." + result.Error.Error(),
		})
		return
	}

	// send verification email
	go func() {
		email.SendVerificationEmail(user.Email, user.VerifyToken)
	}()

	c.JSON(http.StatusOK, gin.H{})
}

func Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if c.Bind(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read body",
		})
		return
	}

	var user db.User
	db.DB.First(&user, "email = ?", body.Email)
	if user.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid email or password",
		})
		return
	}

	if !user.IsVerified {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Email not verified, please click the link in the verification email",
		})
		return
	}

	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid email or password",
		})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(time.Hour * 24 * 30).Unix(),
	})

	tokenString, err := token.SignedString([]byte(os.Getenv("SECRET")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to create token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
	})
}

func User(c *gin.Context) {
	user, _ := c.Get("user")

	userinfo := user.(db.User)

	resp := gin.H{
		"email":             userinfo.Email,
		"name":              userinfo.Name,
		"phone":             userinfo.Phone,
		"woreda":            userinfo.Woreda,
		"region":            userinfo.Region,
		"plan":              userinfo.Plan,
		"membership_status": userinfo.MembershipStatus,
		"membership_id":     userinfo.MembershipID,
	}
	if userinfo.MembershipStart != nil {
		resp["membership_start"] = userinfo.MembershipStart.Format(time.RFC3339)
	}
	if userinfo.MembershipEnd != nil {
		resp["membership_end"] = userinfo.MembershipEnd.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
