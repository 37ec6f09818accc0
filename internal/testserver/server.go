// Package testserver is an in-memory stand-in for the complaint backend:
// the REST routes and the websocket chat rooms. Tests across the module
// drive the real clients against it.
package testserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"complaintdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// Route keys for failure injection: "<METHOD> <gin path>".
const (
	RouteListComplaints  = "GET /complaints/user/:userId"
	RouteCreateComplaint = "POST /complaints"
	RouteUpdateComplaint = "PUT /complaints/:id"
	RouteDeleteComplaint = "DELETE /complaints/:id"
	RouteStats           = "GET /complaints/stats/user/:userId"
	RouteNotifications   = "GET /notifications/:userId"
	RouteLogin           = "POST /login"
	RouteWebSocket       = "GET /ws"
)

// Secret signs the tokens issued by /login.
var Secret = []byte("complaintdesk-test-secret")

type failure struct {
	status int
	detail string
}

type account struct {
	password string
	user     models.User
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	requireAuth   bool
	echoSender    bool
	nextID        int
	complaints    map[models.ComplaintID]models.Complaint
	notifications map[string][]models.Notification
	accounts      map[string]account
	failures      map[string][]failure
	calls         map[string]int
	rooms         map[models.ComplaintID]map[*peer]struct{}
	passwords     map[string]string
	now           func() time.Time
}

// New starts a fake backend on a random local port.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		nextID:        0,
		complaints:    make(map[models.ComplaintID]models.Complaint),
		notifications: make(map[string][]models.Notification),
		accounts:      make(map[string]account),
		failures:      make(map[string][]failure),
		calls:         make(map[string]int),
		rooms:         make(map[models.ComplaintID]map[*peer]struct{}),
		passwords:     make(map[string]string),
		now:           time.Now,
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// WebSocketURL is the ws:// address of the chat endpoint.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.countAndFail)

	r.POST("/login", s.login)
	r.POST("/register", s.register)

	authed := r.Group("/")
	authed.Use(s.authenticate)
	authed.GET("/complaints/user/:userId", s.listComplaints)
	authed.GET("/complaints/stats/user/:userId", s.stats)
	authed.POST("/complaints", s.createComplaint)
	authed.PUT("/complaints/:id", s.updateComplaint)
	authed.DELETE("/complaints/:id", s.deleteComplaint)
	authed.GET("/notifications/:userId", s.listNotifications)
	authed.POST("/change-password", s.changePassword)
	authed.PUT("/users/:id", s.updateUser)
	authed.GET("/ws", s.serveWebSocket)
	return r
}

// RequireAuth makes every route except login and register demand a valid
// bearer token.
func (s *Server) RequireAuth(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = on
}

// EchoSender makes room messages go back to their sender as well.
func (s *Server) EchoSender(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoSender = on
}

// FailNext makes the next call to route answer with status and detail.
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) countAndFail(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()

	s.mu.Lock()
	s.calls[route]++
	var f *failure
	if queue := s.failures[route]; len(queue) > 0 {
		f = &queue[0]
		s.failures[route] = queue[1:]
	}
	s.mu.Unlock()

	if f != nil {
		c.AbortWithStatusJSON(f.status, gin.H{"detail": f.detail})
		return
	}
	c.Next()
}

func (s *Server) authenticate(c *gin.Context) {
	s.mu.Lock()
	required := s.requireAuth
	s.mu.Unlock()
	if !required {
		c.Next()
		return
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authorization token missing"})
		return
	}
	if _, err := ParseToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token or expired"})
		return
	}
	c.Next()
}

// IssueToken signs a token for userID valid for ttl.
func IssueToken(userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
		"iss": "complaintdesk-testserver",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(Secret)
}

// ParseToken verifies a token issued by IssueToken and returns its subject.
func ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

// --- Seeding and inspection ---

// AddAccount registers credentials that /login accepts.
func (s *Server) AddAccount(email, password string, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account{password: password, user: user}
	s.passwords[user.ID] = password
}

// Seed stores complaints as if they were created earlier. Missing ids are assigned.
func (s *Server) Seed(complaints ...models.Complaint) []models.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Complaint, 0, len(complaints))
	for _, c := range complaints {
		if c.ID == "" {
			c.ID = s.allocateID()
		}
		if c.Status == "" {
			c.Status = models.StatusPending
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		s.complaints[c.ID] = c
		out = append(out, c)
	}
	return out
}

// SetStatus simulates the backend moving a complaint, e.g. assigning it.
func (s *Server) SetStatus(id models.ComplaintID, status models.ComplaintStatus, employeeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return
	}
	c.Status = status
	if employeeID != "" {
		c.EmployeeID = &employeeID
	}
	s.complaints[id] = c
}

// AddNotification appends to a user's feed.
func (s *Server) AddNotification(userID string, n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = append(s.notifications[userID], n)
}

// Complaint returns the stored copy of id.
func (s *Server) Complaint(id models.ComplaintID) (models.Complaint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	return c, ok
}

func (s *Server) allocateID() models.ComplaintID {
	s.nextID++
	return models.ComplaintID(strconv.Itoa(s.nextID))
}

// SetNextID makes the next allocated id equal n.
func (s *Server) SetNextID(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = n - 1
}

// --- Handlers ---

func (s *Server) login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[creds.Email]
	s.mu.Unlock()
	if !ok || acc.password != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
		return
	}

	token, err := IssueToken(acc.user.ID, 72*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, models.LoginResult{AccessToken: token, TokenType: "bearer", User: acc.user})
}

func (s *Server) register(c *gin.Context) {
	var body struct {
		FullName string `json:"fullname"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[body.Email]; exists {
		c.JSON(http.StatusConflict, gin.H{"detail": "Email already registered"})
		return
	}
	id := fmt.Sprintf("u-%d", len(s.accounts)+1)
	s.accounts[body.Email] = account{
		password: body.Password,
		user:     models.User{ID: id, FullName: body.FullName, Email: body.Email, Phone: body.Phone, Role: "customer"},
	}
	s.passwords[id] = body.Password
	c.JSON(http.StatusCreated, gin.H{"message": "Registered successfully!"})
}

func (s *Server) changePassword(c *gin.Context) {
	userID := c.PostForm("user_id")
	oldPassword := c.PostForm("old_password")
	newPassword := c.PostForm("new_password")

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.passwords[userID]; !ok || current != oldPassword {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Old password is incorrect"})
		return
	}
	s.passwords[userID] = newPassword
	for email, acc := range s.accounts {
		if acc.user.ID == userID {
			acc.password = newPassword
			s.accounts[email] = acc
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (s *Server) updateUser(c *gin.Context) {
	var patch models.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for email, acc := range s.accounts {
		if acc.user.ID != c.Param("id") {
			continue
		}
		if patch.FullName != nil {
			acc.user.FullName = *patch.FullName
		}
		if patch.Email != nil {
			acc.user.Email = *patch.Email
		}
		if patch.Phone != nil {
			acc.user.Phone = *patch.Phone
		}
		s.accounts[email] = acc
		c.JSON(http.StatusOK, acc.user)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
}

func (s *Server) listComplaints(c *gin.Context) {
	userID := c.Param("userId")

	s.mu.Lock()
	out := make([]models.Complaint, 0)
	for _, complaint := range s.complaints {
		if complaint.UserID == userID {
			out = append(out, complaint)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	c.JSON(http.StatusOK, out)
}

func (s *Server) stats(c *gin.Context) {
	userID := c.Param("userId")

	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.ComplaintStats
	for _, complaint := range s.complaints {
		if complaint.UserID != userID {
			continue
		}
		st.Total++
		switch complaint.Status {
		case models.StatusAssigned:
			st.Assigned++
		case models.StatusResolved:
			st.Resolved++
		default:
			st.Pending++
		}
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) createComplaint(c *gin.Context) {
	var draft models.ComplaintDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	if strings.TrimSpace(draft.Title) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "title is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	complaint := models.Complaint{
		ID:            s.allocateID(),
		UserID:        draft.UserID,
		Title:         draft.Title,
		Description:   draft.Description,
		Address:       draft.Address,
		ComplaintType: draft.ComplaintType,
		Status:        models.StatusPending,
		CreatedAt:     s.now(),
	}
	s.complaints[complaint.ID] = complaint
	c.JSON(http.StatusCreated, complaint)
}

func (s *Server) updateComplaint(c *gin.Context) {
	id := models.ComplaintID(c.Param("id"))
	var patch models.ComplaintPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	complaint, ok := s.complaints[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Complaint not found"})
		return
	}
	complaint = patch.ApplyTo(complaint)
	s.complaints[id] = complaint
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) deleteComplaint(c *gin.Context) {
	id := models.ComplaintID(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.complaints[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Complaint not found"})
		return
	}
	delete(s.complaints, id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listNotifications(c *gin.Context) {
	s.mu.Lock()
	out := append([]models.Notification{}, s.notifications[c.Param("userId")]...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
