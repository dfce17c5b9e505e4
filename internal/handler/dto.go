package handler

import (
	"time"

	"github.com/msomdec/snapgram/internal/domain"
)

// UserDTO is the public JSON representation of a user.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	ImageURL  string `json:"imageUrl"`
	ImageID   string `json:"imageId,omitempty"`
	Bio       string `json:"bio"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		ImageURL:  u.ImageURL,
		ImageID:   u.ImageID,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// AccountDTO is a user as returned to that same user. It adds the account
// identifiers and saved posts to the public fields.
type AccountDTO struct {
	UserDTO
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Saves     []SaveDTO `json:"saves,omitempty"`
}

func toAccountDTO(u *domain.User) AccountDTO {
	dto := AccountDTO{
		UserDTO:   toUserDTO(u),
		AccountID: u.AccountID,
		Email:     u.Email,
	}
	if u.Saves != nil {
		dto.Saves = toSaveDTOs(u.Saves)
	}
	return dto
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}

// CreatorDTO is the subset of the creating user embedded in a post.
type CreatorDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl"`
}

// PostDTO is the JSON representation of a post.
type PostDTO struct {
	ID        string      `json:"id"`
	Creator   *CreatorDTO `json:"creator,omitempty"`
	CreatorID string      `json:"creatorId"`
	Caption   string      `json:"caption"`
	ImageURL  string      `json:"imageUrl"`
	ImageID   string      `json:"imageId"`
	Location  string      `json:"location"`
	Tags      []string    `json:"tags"`
	Likes     []string    `json:"likes"`
	CreatedAt string      `json:"createdAt,omitempty"`
	UpdatedAt string      `json:"updatedAt,omitempty"`
}

func toPostDTO(p *domain.Post) PostDTO {
	dto := PostDTO{
		ID:        p.ID,
		CreatorID: p.CreatorID,
		Caption:   p.Caption,
		ImageURL:  p.ImageURL,
		ImageID:   p.ImageID,
		Location:  p.Location,
		Tags:      nonNil(p.Tags),
		Likes:     nonNil(p.Likes),
	}
	if p.Creator != nil {
		dto.Creator = &CreatorDTO{
			ID:       p.Creator.ID,
			Name:     p.Creator.Name,
			Username: p.Creator.Username,
			ImageURL: p.Creator.ImageURL,
		}
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toPostDTOs(posts []domain.Post) []PostDTO {
	dtos := make([]PostDTO, len(posts))
	for i := range posts {
		dtos[i] = toPostDTO(&posts[i])
	}
	return dtos
}

func toPageDTOs(pages [][]domain.Post) [][]PostDTO {
	dtos := make([][]PostDTO, len(pages))
	for i, page := range pages {
		dtos[i] = toPostDTOs(page)
	}
	return dtos
}

// SaveDTO is the JSON representation of a saved post record.
type SaveDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	PostID    string `json:"postId"`
	CreatedAt string `json:"createdAt"`
}

func toSaveDTO(s *domain.Save) SaveDTO {
	return SaveDTO{
		ID:        s.ID,
		UserID:    s.UserID,
		PostID:    s.PostID,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func toSaveDTOs(saves []domain.Save) []SaveDTO {
	dtos := make([]SaveDTO, len(saves))
	for i := range saves {
		dtos[i] = toSaveDTO(&saves[i])
	}
	return dtos
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
