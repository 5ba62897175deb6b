// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/gate"
	"github.com/agromarket/agromarket/resetpw"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/sessions"
	"github.com/agromarket/agromarket/util"
)

// Flash categories.
const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

const (
	defaultDisplayName = "Usuario"

	// Forgot password page steps
	stepEmail = "email"
	stepCode  = "code"
)

// handleSyncRole stores the identity of a user that signed in with the
// external identity provider in the session.
func (p *agromarketwww) handleSyncRole(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSyncRole")

	var sr v1.SyncRole
	err := json.NewDecoder(r.Body).Decode(&sr)
	if err != nil {
		respondWithError(w, r, "handleSyncRole: unmarshal",
			v1.UserError{
				ErrorCode: v1.ErrorCodeMalformedJSON,
			})
		return
	}
	uid := strings.TrimSpace(sr.UserID)
	if uid == "" {
		respondWithError(w, r, "handleSyncRole",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeMissingField,
				ErrorContext: []string{"user_id"},
			})
		return
	}

	roles := sessions.NormalizeRoles(sr.Roles)
	if len(roles) == 0 {
		roles = []sessions.Role{sessions.RoleBuyer}
	}
	id := sessions.Identity{
		UserID:      uid,
		Email:       strings.ToLower(strings.TrimSpace(sr.Email)),
		DisplayName: strings.TrimSpace(sr.Name),
		Roles:       roles,
		ActiveRole:  roles[0],
	}
	if id.DisplayName == "" {
		id.DisplayName = defaultDisplayName
	}
	if sr.ActiveRole != "" {
		active, ok := sessions.ParseRole(sr.ActiveRole)
		if !ok || !id.HasRole(active) {
			respondWithError(w, r, "handleSyncRole",
				v1.UserError{
					ErrorCode:    v1.ErrorCodeInvalidRole,
					ErrorContext: []string{sr.ActiveRole},
				})
			return
		}
		id.ActiveRole = active
	}

	s := p.session(r)
	s.SetIdentity(id)
	err = p.sessions.Save(w, r, s)
	if err != nil {
		respondWithError(w, r, "handleSyncRole: Save: %v", err)
		return
	}

	log.Infof("Session of user %v synced: roles %v active %v", id.UserID,
		id.Roles, id.ActiveRole)

	rs := make([]string, 0, len(id.Roles))
	for _, v := range id.Roles {
		rs = append(rs, string(v))
	}
	util.RespondWithJSON(w, http.StatusOK, v1.SyncRoleReply{
		Success:    true,
		Message:    "Rol sincronizado correctamente",
		ActiveRole: string(id.ActiveRole),
		Roles:      rs,
	})
}

// handleLogout clears the session and redirects to the login page.
func (p *agromarketwww) handleLogout(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleLogout")

	s := p.session(r)
	if id, ok := s.Identity(); ok {
		log.Infof("User %v signed out", id.UserID)
	}
	s.Clear()
	p.flashRedirect(w, r, s, flashSuccess, "Sesión cerrada correctamente",
		v1.RouteLoginPage)
}

// handleProfile renders the profile of the signed in user.
func (p *agromarketwww) handleProfile(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleProfile")

	p.render(w, r, http.StatusOK, pageProfile, nil)
}

// handleActivateSeller adds the seller role to the signed in user.
func (p *agromarketwww) handleActivateSeller(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleActivateSeller")

	s := p.session(r)
	id, ok := s.Identity()
	if !ok {
		// The gate only lets signed in users through.
		respondWithError(w, r, "handleActivateSeller",
			v1.UserError{ErrorCode: v1.ErrorCodeUnauthenticated})
		return
	}
	if id.HasRole(sessions.RoleSeller) {
		p.flashRedirect(w, r, s, flashInfo,
			"Ya tienes el rol de vendedor activo.", v1.RouteProfilePage)
		return
	}
	if r.Method != http.MethodPost {
		p.render(w, r, http.StatusOK, pageActivateSeller, nil)
		return
	}

	id.Roles = append(id.Roles, sessions.RoleSeller)
	id.ActiveRole = sessions.RoleSeller
	s.SetIdentity(*id)

	log.Infof("Seller role activated for user %v", id.UserID)

	p.flashRedirect(w, r, s, flashSuccess,
		"Rol de vendedor activado con éxito.", v1.RouteSellerPanelPage)
}

// renderForgotPassword renders a step of the forgot password page.
func (p *agromarketwww) renderForgotPassword(w http.ResponseWriter, r *http.Request, step, email string) {
	p.render(w, r, http.StatusOK, pageForgotPassword, map[string]interface{}{
		"step":  step,
		"email": email,
	})
}

// handleForgotPassword handles both steps of the forgot password page. The
// first step issues a reset code for an email and the second step verifies
// the code.
func (p *agromarketwww) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleForgotPassword")

	if r.Method != http.MethodPost {
		p.renderForgotPassword(w, r, stepEmail, "")
		return
	}

	var fp v1.ForgotPassword
	err := util.ParsePostForm(r, &fp)
	if err != nil {
		respondWithError(w, r, "handleForgotPassword: ParsePostForm: %v",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeValidation,
				ErrorContext: []string{err.Error()},
			})
		return
	}

	s := p.session(r)
	if strings.TrimSpace(fp.Code) == "" {
		p.requestResetCode(w, r, s, fp.Email)
		return
	}
	p.verifyResetCode(w, r, s, fp.Email, fp.Code)
}

func (p *agromarketwww) requestResetCode(w http.ResponseWriter, r *http.Request, s *sessions.Session, email string) {
	reply, err := p.reset.Request(r.Context(), s, email)
	switch {
	case errors.Is(err, resetpw.ErrInvalidEmail):
		s.AddFlash(flashDanger, v1.ErrorCodes[v1.ErrorCodeMalformedEmail])
		p.renderForgotPassword(w, r, stepEmail, "")
		return
	case err != nil:
		respondWithError(w, r, "requestResetCode: Request: %v", err)
		return
	}

	sanitize.LogSecurityEvent(sanitize.EventResetRequested, "",
		map[string]string{
			"email":  reply.Email,
			"remote": util.RemoteAddr(r),
		})

	switch {
	case reply.DebugCode != "":
		s.AddFlash(flashWarning, "⚠️ MODO DEBUG: Código de verificación: "+
			reply.DebugCode+". El correo no se pudo enviar.")
	case !reply.Delivered:
		// The code is never shown outside the debug posture.
		s.AddFlash(flashDanger, v1.ErrorCodes[v1.ErrorCodeDeliveryFailed])
		p.renderForgotPassword(w, r, stepEmail, "")
		return
	default:
		// The same message is shown whether or not the email belongs to
		// a user.
		s.AddFlash(flashInfo, "Si el correo existe en nuestro sistema, "+
			"recibirás un código de verificación.")
	}
	p.renderForgotPassword(w, r, stepCode, reply.Email)
}

func (p *agromarketwww) verifyResetCode(w http.ResponseWriter, r *http.Request, s *sessions.Session, email, code string) {
	if strings.TrimSpace(email) == "" {
		if rs, ok := s.Reset(); ok {
			email = rs.Email
		}
	}

	err := p.reset.Verify(r.Context(), s, email, code)
	if err != nil {
		sanitize.LogSecurityEvent(sanitize.EventResetBadCode, "",
			map[string]string{
				"email":  email,
				"remote": util.RemoteAddr(r),
			})
		var ue v1.UserError
		if !errors.As(convertResetError(err), &ue) {
			respondWithError(w, r, "verifyResetCode: Verify: %v", err)
			return
		}
		s.AddFlash(flashDanger, v1.ErrorCodes[ue.ErrorCode])
		p.renderForgotPassword(w, r, stepCode, email)
		return
	}

	p.flashRedirect(w, r, s, flashSuccess, "Código verificado "+
		"correctamente. Ahora puedes cambiar tu contraseña.",
		v1.RouteResetPassPage)
}

// handleResetPassword changes the password once the reset code was
// verified. The form is submitted by the browser or as JSON.
func (p *agromarketwww) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleResetPassword")

	s := p.session(r)
	rs, ok := s.Reset()
	if r.Method != http.MethodPost {
		if !ok || !rs.Verified {
			p.flashRedirect(w, r, s, flashWarning,
				v1.ErrorCodes[v1.ErrorCodeResetNotVerified],
				v1.RouteForgotPassPage)
			return
		}
		p.render(w, r, http.StatusOK, pageResetPassword, nil)
		return
	}

	var (
		rp      v1.ResetPassword
		isJSON  = gate.WantsJSON(r)
		decoded error
	)
	if isJSON {
		decoded = json.NewDecoder(r.Body).Decode(&rp)
	} else {
		decoded = util.ParsePostForm(r, &rp)
	}
	if decoded != nil {
		respondWithError(w, r, "handleResetPassword: decode",
			v1.UserError{
				ErrorCode: v1.ErrorCodeMalformedJSON,
			})
		return
	}

	err := p.reset.Complete(r.Context(), s, rp.Password, rp.PasswordConfirm)
	if err != nil {
		cerr := convertResetError(err)
		var ue v1.UserError
		switch {
		case isJSON:
			respondWithError(w, r, "handleResetPassword: Complete: %v", cerr)
		case !errors.As(cerr, &ue):
			respondWithError(w, r, "handleResetPassword: Complete: %v", err)
		case ue.ErrorCode == v1.ErrorCodeResetNotVerified:
			p.flashRedirect(w, r, s, flashWarning,
				v1.ErrorCodes[ue.ErrorCode], v1.RouteForgotPassPage)
		default:
			s.AddFlash(flashDanger, v1.ErrorCodes[ue.ErrorCode])
			p.render(w, r, http.StatusOK, pageResetPassword, nil)
		}
		return
	}

	sanitize.LogSecurityEvent(sanitize.EventResetCompleted, "",
		map[string]string{
			"email":  rs.Email,
			"remote": util.RemoteAddr(r),
		})

	if isJSON {
		p.saveSession(w, r, s)
		util.RespondWithJSON(w, http.StatusOK, v1.MessageReply{
			Success: true,
			Message: "Contraseña actualizada exitosamente.",
		})
		return
	}
	p.flashRedirect(w, r, s, flashSuccess, "Tu contraseña ha sido "+
		"restablecida exitosamente. Ya puedes iniciar sesión con tu nueva "+
		"contraseña.", v1.RouteLoginPage)
}
