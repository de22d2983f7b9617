package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"sealed-ballot/commitment"
	"sealed-ballot/models"
	"sealed-ballot/registry"
	"sealed-ballot/service"
)

type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

type ChallengeResponse struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	Wallet    common.Address `json:"wallet"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type CreateElectionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	VotingStart int64  `json:"voting_start" binding:"required"`
	VotingEnd   int64  `json:"voting_end" binding:"required"`
}

type CandidateRequest struct {
	Name  string `json:"name" binding:"required"`
	Party string `json:"party" binding:"required"`
}

type VoterRequest struct {
	Name string `json:"name" binding:"required"`
}

type CommitRequest struct {
	Commitment string `json:"commitment" binding:"required"`
}

type RevealRequest struct {
	CandidateID uint64 `json:"candidate_id" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
}

type VerifyCommitmentRequest struct {
	CandidateID uint64 `json:"candidate_id" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
	Commitment  string `json:"commitment" binding:"required"`
}

type StatusResponse struct {
	Wallet    common.Address            `json:"wallet"`
	Candidate models.RegistrationStatus `json:"candidate"`
	Voter     models.VoterStatus        `json:"voter"`
}

// bind decodes the JSON body, answering InvalidInput on failure.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return false
	}
	return true
}

func (s *Server) election(c *gin.Context) (*service.ElectionService, bool) {
	election, err := s.elections.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return election, true
}

func (s *Server) walletParam(c *gin.Context) (common.Address, bool) {
	wallet, err := registry.ParseWallet(c.Param("wallet"))
	if err != nil {
		s.respondError(c, err)
		return common.Address{}, false
	}
	return wallet, true
}

func (s *Server) handleChallenge(c *gin.Context) {
	var req ChallengeRequest
	if !s.bind(c, &req) {
		return
	}
	wallet, err := registry.ParseWallet(req.Address)
	if err != nil {
		s.respondError(c, err)
		return
	}

	message, err := s.challenger.Issue(c.Request.Context(), wallet)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChallengeResponse{Address: wallet.Hex(), Message: message})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if !s.bind(c, &req) {
		return
	}
	wallet, err := registry.ParseWallet(req.Address)
	if err != nil {
		s.respondError(c, err)
		return
	}
	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: signature: %v", models.ErrInvalidInput, err))
		return
	}

	if err := s.challenger.Verify(c.Request.Context(), wallet, signature); err != nil {
		s.logger.Warn("login rejected",
			"event", "login_rejected",
			"module", module,
			"layer", "transport",
			"wallet", wallet.Hex(),
			"error", err.Error(),
		)
		abortUnauthenticated(c, "signature verification failed")
		return
	}

	token, expires, err := s.tokens.Issue(wallet)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, Wallet: wallet, ExpiresAt: expires})
}

func (s *Server) handleListElections(c *gin.Context) {
	c.JSON(http.StatusOK, s.elections.List())
}

func (s *Server) handleCreateElection(c *gin.Context) {
	var req CreateElectionRequest
	if !s.bind(c, &req) {
		return
	}

	election, err := s.elections.Create(c.Request.Context(), callerWallet(c), req.Name, req.Description, req.VotingStart, req.VotingEnd)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, election.Info())
}

func (s *Server) handleGetElection(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, election.Info())
}

func (s *Server) handleListCandidates(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	filter, err := registry.ParseFilter(c.Query("status"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, election.Candidates(filter))
}

func (s *Server) handleListVoters(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	filter, err := registry.ParseFilter(c.Query("status"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, election.Voters(filter))
}

func (s *Server) handleRequestCandidate(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	var req CandidateRequest
	if !s.bind(c, &req) {
		return
	}

	candidate, err := election.RequestCandidate(c.Request.Context(), callerWallet(c), req.Name, req.Party)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, candidate)
}

func (s *Server) handleRequestVoter(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	var req VoterRequest
	if !s.bind(c, &req) {
		return
	}

	voter, err := election.RequestVoter(c.Request.Context(), callerWallet(c), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, voter)
}

func (s *Server) handleApproveCandidate(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	wallet, ok := s.walletParam(c)
	if !ok {
		return
	}

	candidate, err := election.ApproveCandidate(c.Request.Context(), callerWallet(c), wallet)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, candidate)
}

func (s *Server) handleApproveVoter(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	wallet, ok := s.walletParam(c)
	if !ok {
		return
	}

	voter, err := election.ApproveVoter(c.Request.Context(), callerWallet(c), wallet)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voter)
}

func (s *Server) handleStatus(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	wallet, ok := s.walletParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		Wallet:    wallet,
		Candidate: election.CandidateStatus(wallet),
		Voter:     election.VoterStatus(wallet),
	})
}

func (s *Server) handleCommit(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	var req CommitRequest
	if !s.bind(c, &req) {
		return
	}
	hash, err := commitment.ParseCommitment(req.Commitment)
	if err != nil {
		s.respondError(c, err)
		return
	}

	stored, err := election.CommitVote(c.Request.Context(), callerWallet(c), hash)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *Server) handleListCommitments(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, election.Commitments())
}

func (s *Server) handleUnrevealed(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, election.UnrevealedCommitments())
}

func (s *Server) handleGetCommitment(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	wallet, ok := s.walletParam(c)
	if !ok {
		return
	}

	stored, found := election.Commitment(wallet)
	if !found {
		s.respondError(c, fmt.Errorf("%w: %s", models.ErrNoCommitment, wallet.Hex()))
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *Server) handleReveal(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	var req RevealRequest
	if !s.bind(c, &req) {
		return
	}
	// An unparsable or zero secret is rejected here, ahead of the phase check.
	secret, err := commitment.ParseSecret(req.Secret)
	if err != nil {
		s.respondError(c, err)
		return
	}

	receipt, err := election.RevealVote(c.Request.Context(), callerWallet(c), req.CandidateID, secret)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *Server) handleTally(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"election_id": election.ID(),
		"phase":       election.Phase(),
		"tallies":     election.Tallies(),
	})
}

func (s *Server) handleResults(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, election.Results())
}

func (s *Server) handleEndElection(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}

	result, err := election.EndElection(c.Request.Context(), callerWallet(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAudit(c *gin.Context) {
	election, ok := s.election(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, election.Audit())
}

// handleVerifyCommitment lets anyone check a (candidate, secret) pair against
// a commitment without touching election state.
func (s *Server) handleVerifyCommitment(c *gin.Context) {
	var req VerifyCommitmentRequest
	if !s.bind(c, &req) {
		return
	}
	secret, err := commitment.ParseSecret(req.Secret)
	if err != nil {
		s.respondError(c, err)
		return
	}
	hash, err := commitment.ParseCommitment(req.Commitment)
	if err != nil {
		s.respondError(c, err)
		return
	}

	valid, err := commitment.Verify(req.CandidateID, secret, hash)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (s *Server) handleMetrics(c *gin.Context) {
	metrics := s.elections.Metrics()
	if metrics == nil {
		c.JSON(http.StatusOK, service.MetricsResponse{Operations: map[string]service.OperationMetrics{}})
		return
	}
	c.JSON(http.StatusOK, metrics.GetMetrics())
}
