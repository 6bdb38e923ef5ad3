package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"membership-portal/payment/audit"
	"membership-portal/payment/evidence"
	"membership-portal/payment/record"
	"membership-portal/payment/verify"
	"membership-portal/utils"
	"membership-portal/web/db"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

// wired from main
var (
	Records  *record.Store
	Receipts *evidence.Manager
	Verifier *verify.Service
	Audits   *audit.Log
)

func Setup(records *record.Store, receipts *evidence.Manager, verifier *verify.Service, audits *audit.Log) {
	Records = records
	Receipts = receipts
	Verifier = verifier
	Audits = audits
}

// SubmitDonation creates a pending donation record. Guests are welcome: no
// account is required, the payer contact is snapshotted onto the record.
func SubmitDonation(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Woreda   string `json:"woreda"`
		Region   string `json:"region"`
		Amount   int    `json:"amount"` // in cents
		Currency string `json:"currency"`
		Method   string `json:"method"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	in := record.CreateInput{
		Kind:       record.KindDonation,
		PayerName:  req.Name,
		PayerEmail: req.Email,
		PayerPhone: req.Phone,
		Woreda:     req.Woreda,
		Region:     req.Region,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Method:     record.Method(req.Method),
	}

	// a logged-in user donating keeps the link to their account
	if user, ok := c.Get("user"); ok {
		userinfo := user.(db.User)
		in.UserID = userinfo.ID
		if in.PayerName == "" {
			in.PayerName = userinfo.Name
		}
		if in.PayerEmail == "" {
			in.PayerEmail = userinfo.Email
		}
	}

	p, err := Records.Create(in)
	if err != nil {
		var verr *record.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission", "fields": verr.Fields})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create donation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": p.TransactionID,
		"status":         p.Status,
		"amount":         p.Amount,
		"currency":       p.Currency,
	})
}

// SubmitPayment creates a pending membership payment for the logged-in user
// and moves their membership to pending_payment.
func SubmitPayment(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userinfo := user.(db.User)

	var req struct {
		Amount   int    `json:"amount"` // in cents
		Currency string `json:"currency"`
		Method   string `json:"method"`
		Plan     string `json:"plan"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !db.ValidPlan(db.Plan(req.Plan)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan"})
		return
	}

	p, err := Records.Create(record.CreateInput{
		Kind:       record.KindMembership,
		UserID:     userinfo.ID,
		PayerName:  userinfo.Name,
		PayerEmail: userinfo.Email,
		PayerPhone: userinfo.Phone,
		Woreda:     userinfo.Woreda,
		Region:     userinfo.Region,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Method:     record.Method(req.Method),
		Plan:       req.Plan,
	})
	if err != nil {
		var verr *record.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission", "fields": verr.Fields})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	db.DB.Model(&db.User{}).Where("id = ?", userinfo.ID).
		Updates(map[string]interface{}{
			"membership_status": db.MembershipPendingPayment,
			"plan":              req.Plan,
		})

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": p.TransactionID,
		"status":         p.Status,
		"amount":         p.Amount,
		"currency":       p.Currency,
		"plan":           p.Plan,
	})
}

// UploadReceipt attaches the receipt file to a payment record. The record is
// addressed by transaction id so guests can upload against their donation.
func UploadReceipt(c *gin.Context) {
	p, ok := lookupPayment(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing receipt file"})
		return
	}
	defer file.Close()

	// the size check in the manager is authoritative; LimitReader only keeps
	// an oversized body from being buffered whole
	data, err := io.ReadAll(io.LimitReader(file, utils.MaxUploadSize()+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read receipt file"})
		return
	}

	updated, err := Receipts.Attach(p.ID, evidence.Upload{
		OriginalName: header.Filename,
		Data:         data,
	})
	if err != nil {
		switch {
		case errors.Is(err, evidence.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Receipt file too large"})
		case errors.Is(err, evidence.ErrUnsupportedMediaType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Receipt must be an image or a PDF"})
		case errors.Is(err, record.ErrInvalidStateTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Payment already reviewed"})
		case errors.Is(err, record.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to attach receipt"})
		}
		return
	}

	if updated.Kind == record.KindMembership && updated.UserID != 0 {
		db.DB.Model(&db.User{}).
			Where("id = ? AND membership_status = ?", updated.UserID, db.MembershipPendingPayment).
			Update("membership_status", db.MembershipPendingVerification)
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": updated.TransactionID,
		"status":         updated.Status,
		"file_name":      updated.OriginalName,
	})
}

func GetPayment(c *gin.Context) {
	p, ok := lookupPayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, paymentJSON(p))
}

func ListPayments(c *gin.Context) {
	user, ok := c.Get("user")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payments, err := Records.ListByUser(user.(db.User).ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	out := make([]gin.H, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

// PaymentQR renders the bank-transfer reference as a QR image, so the payer
// can scan it at the bank or in a mobile-money app instead of typing the
// transaction id.
func PaymentQR(c *gin.Context) {
	p, ok := lookupPayment(c)
	if !ok {
		return
	}

	content := fmt.Sprintf("%s %d %s", p.TransactionID, p.Amount, p.Currency)
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func lookupPayment(c *gin.Context) (record.Payment, bool) {
	p, err := Records.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		}
		return record.Payment{}, false
	}
	return p, true
}

func paymentJSON(p record.Payment) gin.H {
	out := gin.H{
		"transaction_id": p.TransactionID,
		"kind":           p.Kind,
		"status":         p.Status,
		"amount":         p.Amount,
		"currency":       p.Currency,
		"method":         p.Method,
		"payer_name":     p.PayerName,
		"created_at":     p.CreatedAt,
	}
	if p.Plan != "" {
		out["plan"] = p.Plan
	}
	if p.UploadedAt != nil {
		out["receipt"] = gin.H{
			"original_name": p.OriginalName,
			"mime_type":     p.MimeType,
			"size_bytes":    p.SizeBytes,
			"uploaded_at":   p.UploadedAt,
		}
	}
	if p.ReviewedAt != nil {
		out["reviewer"] = p.Reviewer
		out["reviewed_at"] = p.ReviewedAt
		out["review_notes"] = p.ReviewNotes
	}
	return out
}
