// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"strings"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/firebase"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/sessions"
	"github.com/agromarket/agromarket/util"
	"github.com/gorilla/mux"
)

// reviewActions maps the seller application review actions to the
// notification that is sent to the applicant.
var reviewActions = map[string]struct {
	kind    notify.Kind
	message string
}{
	"aprobar":   {notify.KindSellerApproved, "Solicitud aprobada correctamente"},
	"rechazar":  {notify.KindSellerRejected, "Solicitud rechazada correctamente"},
	"pendiente": {notify.KindSellerPending, "Solicitud marcada como pendiente"},
}

func convertUserToV1(u firebase.User) v1.User {
	return v1.User{
		ID:           u.UID,
		Email:        u.Email,
		Name:         u.DisplayName,
		Phone:        u.Phone,
		Role:         u.Role,
		Disabled:     u.Disabled,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

// directory returns the user directory. A user error is returned when no
// directory is configured.
func (p *agromarketwww) directory() (userDirectory, error) {
	if p.users == nil {
		return nil, v1.UserError{
			ErrorCode: v1.ErrorCodeServiceUnavailable,
		}
	}
	return p.users, nil
}

// handleUsers returns every user of the marketplace. An empty list is
// returned when no user directory is configured.
func (p *agromarketwww) handleUsers(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleUsers")

	reply := v1.UsersReply{
		Success: true,
		Users:   []v1.User{},
	}
	if p.users == nil {
		util.RespondWithJSON(w, http.StatusOK, reply)
		return
	}

	users, err := p.users.Users(r.Context())
	if err != nil {
		respondWithError(w, r, "handleUsers: Users: %v",
			convertDirectoryError(err))
		return
	}
	for _, v := range users {
		reply.Users = append(reply.Users, convertUserToV1(v))
	}

	util.RespondWithJSON(w, http.StatusOK, reply)
}

// handleUpdateUser edits the profile of a user.
func (p *agromarketwww) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleUpdateUser")

	uid := mux.Vars(r)["id"]
	var uu v1.UpdateUser
	err := decodeJSON(r, &uu)
	if err != nil {
		respondWithError(w, r, "handleUpdateUser: %v", err)
		return
	}

	var (
		update  firebase.UserUpdate
		invalid []string
	)
	if strings.TrimSpace(uu.Name) != "" {
		update.DisplayName, err = sanitize.Name(uu.Name, 2, 100)
		if err != nil {
			invalid = append(invalid, "nombre")
		}
	}
	if strings.TrimSpace(uu.Email) != "" {
		update.Email, err = sanitize.Email(uu.Email)
		if err != nil {
			invalid = append(invalid, "email")
		}
	}
	if strings.TrimSpace(uu.Phone) != "" {
		update.Phone, err = sanitize.Phone(uu.Phone)
		if err != nil {
			invalid = append(invalid, "telefono")
		}
	}
	if len(invalid) > 0 {
		respondWithError(w, r, "handleUpdateUser",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeValidation,
				ErrorContext: invalid,
			})
		return
	}

	d, err := p.directory()
	if err != nil {
		respondWithError(w, r, "handleUpdateUser: %v", err)
		return
	}
	err = d.UpdateUser(r.Context(), uid, update)
	if err != nil {
		respondWithError(w, r, "handleUpdateUser: UpdateUser: %v",
			convertDirectoryError(err))
		return
	}

	util.RespondWithJSON(w, http.StatusOK, v1.MessageReply{
		Success: true,
		Message: "Usuario actualizado correctamente",
	})
}

// handleDeleteUser deletes a user. Administrators can not delete their own
// account.
func (p *agromarketwww) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleDeleteUser")

	uid := mux.Vars(r)["id"]
	if uid == p.sessionUserID(r) {
		respondWithError(w, r, "handleDeleteUser",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeForbidden,
				ErrorContext: []string{"No puedes eliminar tu propia cuenta"},
			})
		return
	}

	d, err := p.directory()
	if err != nil {
		respondWithError(w, r, "handleDeleteUser: %v", err)
		return
	}
	err = d.DeleteUser(r.Context(), uid)
	if err != nil {
		respondWithError(w, r, "handleDeleteUser: DeleteUser: %v",
			convertDirectoryError(err))
		return
	}

	util.RespondWithJSON(w, http.StatusOK, v1.MessageReply{
		Success: true,
		Message: "Usuario eliminado correctamente",
	})
}

// handleChangeUserRole sets the role of a user.
func (p *agromarketwww) handleChangeUserRole(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleChangeUserRole")

	uid := mux.Vars(r)["id"]
	var cr v1.ChangeUserRole
	err := decodeJSON(r, &cr)
	if err != nil {
		respondWithError(w, r, "handleChangeUserRole: %v", err)
		return
	}
	role, ok := sessions.ParseRole(cr.Role)
	if !ok {
		respondWithError(w, r, "handleChangeUserRole",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeInvalidRole,
				ErrorContext: []string{cr.Role},
			})
		return
	}

	d, err := p.directory()
	if err != nil {
		respondWithError(w, r, "handleChangeUserRole: %v", err)
		return
	}
	err = d.SetRole(r.Context(), uid, string(role))
	if err != nil {
		respondWithError(w, r, "handleChangeUserRole: SetRole: %v",
			convertDirectoryError(err))
		return
	}

	log.Infof("Role of user %v set to %v by %v", uid, role,
		p.sessionUserID(r))

	util.RespondWithJSON(w, http.StatusOK, v1.MessageReply{
		Success: true,
		Message: "Rol actualizado correctamente",
	})
}

// handleReviewSeller informs the applicant of the review of a seller
// application. The review is stored by the client; a failed notification
// does not fail the request.
func (p *agromarketwww) handleReviewSeller(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleReviewSeller")

	vars := mux.Vars(r)
	action, ok := reviewActions[vars["accion"]]
	if !ok {
		// The route only matches the known actions.
		respondWithError(w, r, "handleReviewSeller",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeValidation,
				ErrorContext: []string{vars["accion"]},
			})
		return
	}

	var rs v1.ReviewSeller
	err := decodeJSON(r, &rs)
	if err != nil {
		respondWithError(w, r, "handleReviewSeller: %v", err)
		return
	}
	email, err := validRecipient(rs.Email)
	if err != nil {
		respondWithError(w, r, "handleReviewSeller: %v", err)
		return
	}

	n, err := notify.NewSellerReview(action.kind, notify.SellerReview{
		Email:     email,
		Name:      firstNonEmpty(rs.Name, defaultDisplayName),
		StoreName: rs.StoreName,
		Reason:    rs.Reason,
	})
	if err != nil {
		respondWithError(w, r, "handleReviewSeller: NewSellerReview: %v", err)
		return
	}
	p.relay.Notify(r.Context(), n)

	log.Infof("Seller application %v reviewed: %v", vars["id"],
		action.kind)

	util.RespondWithJSON(w, http.StatusOK, v1.MessageReply{
		Success: true,
		Message: action.message,
	})
}
