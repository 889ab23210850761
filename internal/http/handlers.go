package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/anonsocial/anon/internal/models"
	"github.com/anonsocial/anon/internal/ws"
)

const (
	maxPostLength = 420
	maxBioLength  = 140

	rateLimitRPS   = 1.0 / 3.0 // 1 post every 3 seconds
	rateLimitBurst = 1

	defaultPageSize = 10
	maxPageSize     = 50
)

// Env carries the handlers' dependencies.
type Env struct {
	DB  *gorm.DB
	Hub *ws.Hub
}

// Request bodies.

type CreatePostInput struct {
	Content string `json:"content" binding:"required,min=1,max=420"`
}

type VoteInput struct {
	VoteType int `json:"vote_type" binding:"required,oneof=-1 1"`
}

// Response shapes. Field names follow the public API contract.

type authorOut struct {
	AuthorID   uint    `json:"author_id"`
	Username   string  `json:"username"`
	AvatarSeed *string `json:"avatar_seed"`
}

type postOut struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    authorOut `json:"author"`
	Score     int       `json:"score"`
	UserVote  *int      `json:"user_vote"`
}

// WsMessage is the envelope for feed events pushed over /ws.
type WsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func fail(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}

// currentUser returns the user placed in the context by AuthRequired.
func currentUser(c *gin.Context) *models.User {
	u, _ := c.Get(ctxUserKey)
	return u.(*models.User)
}

func (e *Env) postOut(post models.Post, author models.User, score int, userVote *int) postOut {
	username := ""
	if author.Username != nil {
		username = *author.Username
	}
	return postOut{
		ID:        post.ID,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		Author:    authorOut{AuthorID: author.ID, Username: username, AvatarSeed: author.AvatarSeed},
		Score:     score,
		UserVote:  userVote,
	}
}

// scores returns SUM(value) per post for the given IDs.
func (e *Env) scores(postIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PostID uint
		Score  int
	}
	err := e.DB.Model(&models.Vote{}).
		Select("post_id, COALESCE(SUM(value), 0) AS score").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.PostID] = r.Score
	}
	return out, nil
}

// userVotes returns the given user's vote per post.
func (e *Env) userVotes(userID uint, postIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var votes []models.Vote
	err := e.DB.Where("user_id = ? AND post_id IN ?", userID, postIDs).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.PostID] = v.Value
	}
	return out, nil
}

func (e *Env) postsToOut(user *models.User, posts []models.Post) ([]postOut, error) {
	ids := make([]uint, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	seen := map[uint]bool{}
	for i, p := range posts {
		ids[i] = p.ID
		if !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}

	scores, err := e.scores(ids)
	if err != nil {
		return nil, err
	}
	votes, err := e.userVotes(user.ID, ids)
	if err != nil {
		return nil, err
	}

	var authors []models.User
	if len(authorIDs) > 0 {
		if err := e.DB.Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[uint]models.User, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}

	out := make([]postOut, len(posts))
	for i, p := range posts {
		var userVote *int
		if v, ok := votes[p.ID]; ok {
			vv := v
			userVote = &vv
		}
		out[i] = e.postOut(p, byID[p.AuthorID], scores[p.ID], userVote)
	}
	return out, nil
}

// GetPosts handles GET /posts/.
func (e *Env) GetPosts(c *gin.Context) {
	user := currentUser(c)

	var posts []models.Post
	if err := e.DB.Where("deleted = ?", false).Order("created_at desc").Find(&posts).Error; err != nil {
		log.Printf("Error fetching posts: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	out, err := e.postsToOut(user, posts)
	if err != nil {
		log.Printf("Error assembling posts: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetUserPosts handles GET /posts/user/:username with limit/offset paging.
func (e *Env) GetUserPosts(c *gin.Context) {
	user := currentUser(c)

	var author models.User
	err := e.DB.Where("username = ?", c.Param("username")).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := func() *gorm.DB {
		return e.DB.Model(&models.Post{}).Where("author_id = ? AND deleted = ?", author.ID, false)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	var posts []models.Post
	if err := query().Order("created_at desc").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	items, err := e.postsToOut(user, posts)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// CreatePost handles POST /posts/.
func (e *Env) CreatePost(c *gin.Context) {
	user := currentUser(c)
	if user.Username == nil {
		fail(c, http.StatusForbidden, "Set a username before posting")
		return
	}

	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	post := models.Post{Content: input.Content, AuthorID: user.ID}
	if err := e.DB.Create(&post).Error; err != nil {
		log.Printf("Error creating post: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to create post")
		return
	}

	out := e.postOut(post, *user, 0, nil)
	e.broadcast(WsMessage{Type: "new_post", Data: out})
	c.JSON(http.StatusCreated, out)
}

// DeletePost handles DELETE /posts/:id. Posts are hidden, not dropped.
func (e *Env) DeletePost(c *gin.Context) {
	user := currentUser(c)
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	var post models.Post
	err = e.DB.Where("deleted = ?", false).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete post")
		return
	}
	if post.AuthorID != user.ID {
		fail(c, http.StatusForbidden, "You are not the author of this post")
		return
	}

	if err := e.DB.Model(&post).Update("deleted", true).Error; err != nil {
		log.Printf("Error deleting post %d: %v", post.ID, err)
		fail(c, http.StatusInternalServerError, "Failed to delete post")
		return
	}

	e.broadcast(WsMessage{Type: "delete", Data: gin.H{"id": post.ID}})
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// SetVote handles PUT /posts/:id/vote: creates the vote or updates it to the
// requested type.
func (e *Env) SetVote(c *gin.Context) {
	user := currentUser(c)
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}
	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	score, herr := e.applyVote(user.ID, uint(postID), &input.VoteType)
	if herr != nil {
		fail(c, herr.status, herr.detail)
		return
	}

	e.broadcast(WsMessage{Type: "vote", Data: gin.H{"id": postID, "score": score}})
	c.JSON(http.StatusOK, gin.H{
		"message": "Vote updated successfully",
		"post":    gin.H{"id": postID, "score": score, "user_vote": input.VoteType},
	})
}

// RemoveVote handles DELETE /posts/:id/vote. Removing a vote that does not
// exist is a no-op.
func (e *Env) RemoveVote(c *gin.Context) {
	user := currentUser(c)
	postID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	score, herr := e.applyVote(user.ID, uint(postID), nil)
	if herr != nil {
		fail(c, herr.status, herr.detail)
		return
	}

	e.broadcast(WsMessage{Type: "vote", Data: gin.H{"id": postID, "score": score}})
	c.JSON(http.StatusOK, gin.H{
		"message": "Vote removed successfully",
		"post":    gin.H{"id": postID, "score": score, "user_vote": nil},
	})
}

type handlerError struct {
	status int
	detail string
}

var errPostNotFound = errors.New("post not found")

// applyVote upserts (voteType != nil) or removes (voteType == nil) the user's
// vote inside one transaction and returns the resulting score.
func (e *Env) applyVote(userID, postID uint, voteType *int) (int, *handlerError) {
	var score int

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		err := tx.Where("deleted = ?", false).First(&post, postID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errPostNotFound
		}
		if err != nil {
			return err
		}

		var existing models.Vote
		err = tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		switch {
		case voteType == nil && found:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case voteType == nil:
			// No vote to remove; still fine.
		case found && existing.Value != *voteType:
			existing.Value = *voteType
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		case !found:
			vote := models.Vote{UserID: userID, PostID: postID, Value: *voteType}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		}

		var sum int64
		err = tx.Model(&models.Vote{}).
			Select("COALESCE(SUM(value), 0)").
			Where("post_id = ?", postID).
			Scan(&sum).Error
		if err != nil {
			return err
		}
		score = int(sum)
		return nil
	})

	if errors.Is(err, errPostNotFound) {
		return 0, &handlerError{http.StatusNotFound, "Post not found"}
	}
	if err != nil {
		log.Printf("Error in vote transaction: %v", err)
		return 0, &handlerError{http.StatusInternalServerError, "Failed to process vote"}
	}
	return score, nil
}

func (e *Env) broadcast(msg WsMessage) {
	if e.Hub == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling WS message: %v", err)
		return
	}
	e.Hub.Broadcast <- payload
}
