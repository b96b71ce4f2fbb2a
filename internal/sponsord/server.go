// Package sponsord is the remote sponsor service: it receives fully built
// transaction bytes plus the user's signature, co-signs as gas payer with
// the locally held sponsor key and submits to the chain, all in one
// request. Signing and submission are atomic from the client's point of
// view; the sponsor credential never leaves this process.
package sponsord

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/logger"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/backend"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/chain"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/keypair"
)

// Server holds the sponsor keypair and the fullnode client.
type Server struct {
	chain  *chain.Client
	signer *keypair.Keypair
}

// New creates a sponsor server.
func New(chainClient *chain.Client, signer *keypair.Keypair) *Server {
	return &Server{chain: chainClient, signer: signer}
}

// SponsorAddress is the address gas is paid from.
func (s *Server) SponsorAddress() string { return s.signer.Address() }

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/positions/sponsor_gas", s.handleSponsorGas)
	return r
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, backend.SponsorResponse{Success: false, Error: msg})
}

func (s *Server) handleSponsorGas(c *gin.Context) {
	var req backend.SponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TransactionBytesB64 == "" || req.UserSignatureB64 == "" {
		fail(c, http.StatusBadRequest, "transactionBytesB64 and userSignatureB64 are required")
		return
	}

	txBytes, err := base64.StdEncoding.DecodeString(req.TransactionBytesB64)
	if err != nil {
		fail(c, http.StatusBadRequest, "transactionBytesB64 is not valid base64")
		return
	}

	// The user signature must actually cover these bytes. Rejecting here
	// keeps the sponsor from co-signing arbitrary payloads.
	signer, err := keypair.VerifyTransactionSignature(txBytes, req.UserSignatureB64)
	if err != nil {
		fail(c, http.StatusBadRequest, "user signature verification failed: "+err.Error())
		return
	}

	sponsorSig, err := s.signer.SignTransactionBytes(txBytes)
	if err != nil {
		fail(c, http.StatusInternalServerError, "sponsor signing failed: "+err.Error())
		return
	}

	res, err := s.chain.ExecuteTransaction(c.Request.Context(), req.TransactionBytesB64,
		[]string{req.UserSignatureB64, sponsorSig})
	if err != nil {
		logger.WithField("user", signer).Warnf("sponsored submission failed: %v", err)
		fail(c, http.StatusBadGateway, err.Error())
		return
	}

	logger.WithField("user", signer).
		WithField("digest", res.Digest).
		Info("sponsored transaction submitted")

	out := backend.SponsorResponse{Success: true, Digest: res.Digest, Events: res.Events}
	if res.Effects != nil {
		out.Effects = map[string]any{
			"status":     res.Effects.Status,
			"gasUsed":    res.Effects.GasUsed,
			"checkpoint": res.Effects.Checkpoint,
		}
	}
	c.JSON(http.StatusOK, out)
}
