package main

import (
	stlog "log"
	"os"
	"time"

	"membership-portal/payment/audit"
	"membership-portal/payment/evidence"
	"membership-portal/payment/record"
	"membership-portal/payment/txid"
	"membership-portal/payment/verify"
	"membership-portal/utils"
	"membership-portal/web/controllers"
	"membership-portal/web/db"
	"membership-portal/web/email"
	"membership-portal/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	files, err := evidence.NewDiskStore(utils.UploadDir())
	if err != nil {
		stlog.Fatalln("Error creating upload dir:", err)
	}

	audits := audit.NewLog(db.DB)
	records := record.NewStore(db.DB, txid.New(utils.TxidPrefix()), audits)
	receipts := evidence.NewManager(records, files, utils.MaxUploadSize())
	verifier := verify.NewService(db.DB, records, audits, email.NewNotifier(), utils.MembershipMonths())
	controllers.Setup(records, receipts, verifier, audits)

	r := gin.Default()
	r.Use(cors.Default())

	// uploads can exceed the default multipart memory threshold
	r.MaxMultipartMemory = utils.MaxUploadSize()

	globalLimiter := middleware.NewRateLimiter(15, time.Minute) // 15 requests/min/IP
	globalLimiter.StartCleanup(10 * time.Minute)

	r.POST("/signup", globalLimiter.Middleware(), controllers.Signup)
	r.GET("/verify", globalLimiter.Middleware(), controllers.VerifyEmail)
	r.POST("/login", globalLimiter.Middleware(), controllers.Login)
	r.GET("/user", globalLimiter.Middleware(), middleware.RequireAuth, controllers.User)

	r.POST("/donation", globalLimiter.Middleware(), controllers.SubmitDonation)
	r.POST("/payment", globalLimiter.Middleware(), middleware.RequireAuth, controllers.SubmitPayment)
	r.POST("/payment/:id/receipt", globalLimiter.Middleware(), controllers.UploadReceipt)
	r.GET("/payment/:id", globalLimiter.Middleware(), controllers.GetPayment)
	r.GET("/payment/:id/qr", globalLimiter.Middleware(), controllers.PaymentQR)
	r.GET("/payments", globalLimiter.Middleware(), middleware.RequireAuth, controllers.ListPayments)

	// Admin routes
	r.GET("/admin/payments", middleware.RequireAuth, middleware.RequireAdmin, controllers.ListSubmittedPayments)
	r.POST("/admin/payments/:id/decision", middleware.RequireAuth, middleware.RequireAdmin, controllers.DecidePayment)
	r.GET("/admin/audit", middleware.RequireAuth, middleware.RequireAdmin, controllers.ListAuditEntries)
	r.GET("/admin/health", middleware.RequireAuth, middleware.RequireAdmin, controllers.Health)
	r.POST("/admin/membership", middleware.RequireAuth, middleware.RequireAdmin, controllers.SetMembership)

	port := os.Getenv("GIN_PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
