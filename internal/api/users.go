package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/auth"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/user"
	"gorm.io/gorm"
)

func (s *Server) dbFor(c *gin.Context) *gorm.DB {
	return s.db.WithContext(c.Request.Context())
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin accepts JSON {email|username, password} or the OAuth2 password
// form fields username and password.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
	} else {
		req.Username = c.PostForm("username")
		req.Password = c.PostForm("password")
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	if email == "" || req.Password == "" {
		badRequest(c, "email and password are required")
		return
	}

	tok, u, err := s.auth.Login(email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("user logged in", "user_id", u.ID, "role", u.Role)
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
		"expires_at":   tok.ExpiresAt,
		"user":         toUser(u),
	})
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := user.Get(s.dbFor(c), auth.ActorFrom(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(u))
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and password are required")
		return
	}
	opts := user.CreateOpts{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Role != "" {
		role, err := models.ParseRole(req.Role)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		opts.Role = role
	}
	u, err := user.Create(s.dbFor(c), opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("user registered", "user_id", u.ID, "role", u.Role, "by", auth.ActorFrom(c).UserID)
	c.JSON(http.StatusCreated, toUser(u))
}

func (s *Server) handleListUsers(c *gin.Context) {
	skip, limit, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	active, err := parseOptionalBool(c, "active")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	f := user.ListFilters{Active: active, Skip: skip, Limit: limit}
	if v := c.Query("role"); v != "" {
		if f.Role, err = models.ParseRole(v); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	users, err := user.List(s.dbFor(c), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]userDTO, len(users))
	for i := range users {
		out[i] = toUser(&users[i])
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := user.Get(s.dbFor(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(u))
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	opts := user.UpdateOpts{Name: req.Name, Email: req.Email, Password: req.Password, Active: req.Active}
	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		opts.Role = &role
	}
	u, err := user.Update(s.dbFor(c), id, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(u))
}

// handleDeactivateUser clears Active; users are never deleted.
func (s *Server) handleDeactivateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := user.Deactivate(s.dbFor(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("user deactivated", "user_id", u.ID, "by", auth.ActorFrom(c).UserID)
	c.JSON(http.StatusOK, toUser(u))
}
