// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"strings"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/util"
	"github.com/google/uuid"
)

const (
	apkFilename    = "AgroMarket.apk"
	apkContentType = "application/vnd.android.package-archive"
)

// supportTopics maps the topics of the support form to their display text.
var supportTopics = map[string]string{
	"cuenta":   "Problemas con mi cuenta",
	"pedido":   "Consulta sobre un pedido",
	"pago":     "Problemas con el pago",
	"producto": "Consulta sobre productos",
	"tecnico":  "Soporte técnico",
	"otro":     "Otro",
}

var supportSchema = sanitize.Schema{
	"nombre": {
		Type:      sanitize.TypeName,
		Required:  true,
		MinLength: 2,
		MaxLength: 100,
	},
	"email": {
		Type:     sanitize.TypeEmail,
		Required: true,
	},
	"asunto": {
		Type:      sanitize.TypeString,
		Required:  true,
		MaxLength: 50,
	},
	"mensaje": {
		Type:      sanitize.TypeTextArea,
		Required:  true,
		MaxLength: 5000,
	},
}

// stringFields returns the string values of a decoded form.
func stringFields(m map[string]interface{}) map[string]string {
	f := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			f[k] = s
		}
	}
	return f
}

// str returns the string value of a sanitized form field.
func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// handleNews returns the news shown on the information page.
func (p *agromarketwww) handleNews(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleNews")

	util.RespondWithJSON(w, http.StatusOK, v1.NewsReply{
		News: []interface{}{},
	})
}

// handleDownloadApp serves the Android application package.
func (p *agromarketwww) handleDownloadApp(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleDownloadApp")

	f, err := os.Open(p.cfg.APKFile)
	if err != nil {
		log.Errorf("handleDownloadApp: %v", err)
		http.Error(w, "Archivo APK no encontrado. Por favor, contacta al "+
			"administrador.", http.StatusNotFound)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		respondWithError(w, r, "handleDownloadApp: Stat: %v", err)
		return
	}

	w.Header().Set("Content-Type", apkContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", apkFilename))
	http.ServeContent(w, r, apkFilename, fi.ModTime(), f)
}

// handleSendSupport delivers a message of the support form to the support
// inbox.
func (p *agromarketwww) handleSendSupport(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSendSupport")

	var form map[string]interface{}
	err := json.NewDecoder(r.Body).Decode(&form)
	if err != nil || len(form) == 0 {
		respondWithError(w, r, "handleSendSupport: unmarshal",
			v1.UserError{
				ErrorCode: v1.ErrorCodeMalformedJSON,
			})
		return
	}

	// Look for scripts before the fields are escaped
	if hits := sanitize.DetectXSSFields(stringFields(form)); len(hits) > 0 {
		sanitize.LogSecurityEvent(sanitize.EventXSSAttempt, "",
			map[string]string{
				"form":   "soporte",
				"fields": strings.Join(hits, ","),
				"remote": util.RemoteAddr(r),
			})
		respondWithError(w, r, "handleSendSupport: xss",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeXSSDetected,
				ErrorContext: hits,
			})
		return
	}

	clean, err := sanitize.FormData(form, supportSchema)
	if err != nil {
		var fe sanitize.FieldError
		if errors.As(err, &fe) {
			respondWithError(w, r, "handleSendSupport: FormData: %v",
				v1.UserError{
					ErrorCode:    v1.ErrorCodeValidation,
					ErrorContext: []string{fe.Error()},
				})
			return
		}
		respondWithError(w, r, "handleSendSupport: FormData: %v", err)
		return
	}

	subject := html.UnescapeString(str(clean, "asunto"))
	topic, ok := supportTopics[subject]
	if !ok {
		topic = subject
	}
	t := notify.SupportTicket{
		TicketID: uuid.New().String(),
		Name:     html.UnescapeString(str(clean, "nombre")),
		Email:    str(clean, "email"),
		Subject:  subject,
		Topic:    topic,
		Message:  html.UnescapeString(str(clean, "mensaje")),
	}
	n, err := p.relay.SupportTicket(t)
	if err != nil {
		respondWithError(w, r, "handleSendSupport: SupportTicket: %v", err)
		return
	}
	err = p.relay.Send(r.Context(), n)
	if err != nil {
		respondWithError(w, r, "handleSendSupport: Send: %v",
			convertNotifyError(err))
		return
	}

	log.Infof("Support ticket %v sent by %v", t.TicketID, t.Email)

	util.RespondWithJSON(w, http.StatusOK, v1.SupportMessageReply{
		Success: true,
		Message: "Tu mensaje ha sido enviado correctamente. Te " +
			"responderemos pronto.",
		Ticket: t.TicketID,
		Data: map[string]interface{}{
			"nombre":       t.Name,
			"email":        t.Email,
			"asunto":       t.Subject,
			"asunto_texto": t.Topic,
			"mensaje":      t.Message,
		},
	})
}
