package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"membership-portal/payment/audit"
	"membership-portal/payment/membership"
	"membership-portal/payment/record"
	"membership-portal/web/db"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListSubmittedPayments is the admin review queue, oldest first. An explicit
// ?status= filter shows other buckets.
func ListSubmittedPayments(c *gin.Context) {
	status := record.StatusSubmitted
	if s := c.Query("status"); s != "" {
		status = record.Status(s)
	}

	payments, err := Records.ListByStatus(status)
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

// DecidePayment applies the reviewer's verdict to a submitted payment.
func DecidePayment(c *gin.Context) {
	user, _ := c.Get("user")
	admin := user.(db.User)

	p, ok := lookupPayment(c)
	if !ok {
		return
	}

	var req struct {
		Outcome string `json:"outcome"` // "verified" or "rejected"
		Notes   string `json:"notes"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	decided, err := Verifier.Decide(p.ID, record.Status(req.Outcome), admin.Email, req.Notes)
	if err != nil {
		if errors.Is(err, record.ErrInvalidStateTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "Payment is not awaiting review (already decided or no receipt attached)"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply decision"})
		return
	}

	c.JSON(http.StatusOK, paymentJSON(decided))
}

func ListAuditEntries(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	entries, total, err := Audits.List(audit.Filter{
		Actor:  c.Query("actor"),
		Action: audit.Action(c.Query("action")),
	}, page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"page":    page,
	})
}

// SetMembership is the explicit admin override for a member's plan and
// status, outside the payment workflow. The override is audited like any
// other state change.
func SetMembership(c *gin.Context) {
	user, _ := c.Get("user")
	admin := user.(db.User)

	var req struct {
		Email  string `json:"email"`
		Plan   string `json:"plan"`
		Status string `json:"status"`
		Months int    `json:"months"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Plan != "" && !db.ValidPlan(db.Plan(req.Plan)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan"})
		return
	}

	// the email lookup only resolves the id; Override re-reads the row
	// locked inside the transaction
	var member db.User
	if err := db.DB.First(&member, "email = ?", req.Email).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		updated, err := membership.Override(tx, member.ID, membership.OverrideInput{
			Plan:   db.Plan(req.Plan),
			Status: db.MembershipStatus(req.Status),
			Months: req.Months,
		}, time.Now())
		if err != nil {
			return err
		}
		member = updated

		return Audits.Record(tx, admin.Email, audit.ActionMembershipOverride,
			"membership override for "+member.Email, map[string]string{
				"member": member.Email,
				"plan":   string(member.Plan),
				"status": string(member.MembershipStatus),
			})
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update membership"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Membership updated successfully",
		"email":   member.Email,
		"plan":    member.Plan,
		"status":  member.MembershipStatus,
	})
}
