// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	v1 "github.com/agromarket/agromarket/agromarketwww/api/v1"
	"github.com/agromarket/agromarket/notify"
	"github.com/agromarket/agromarket/sanitize"
	"github.com/agromarket/agromarket/util"
	"github.com/google/uuid"
)

const (
	// multipartMemory is the part of a multipart form that is kept in
	// memory. The rest is spilled to temporary files.
	multipartMemory = 1 << 20 // 1 MiB

	imageField = "imagen"
)

var zero int64

var productSchema = sanitize.Schema{
	"nombre": {
		Type:      sanitize.TypeString,
		Required:  true,
		MaxLength: 100,
	},
	"descripcion": {
		Type:      sanitize.TypeTextArea,
		MaxLength: 1000,
	},
	"precio": {
		Type:     sanitize.TypeFloat,
		Required: true,
	},
	"stock": {
		Type:     sanitize.TypeInt,
		MinValue: &zero,
		Default:  int64(0),
	},
	"unidad": {
		Type:      sanitize.TypeString,
		MaxLength: 20,
		Default:   "kg",
	},
	"categoria": {
		Type:      sanitize.TypeString,
		MaxLength: 50,
	},
}

// formValues returns the first value of every field of a parsed form.
func formValues(r *http.Request) map[string]interface{} {
	m := make(map[string]interface{}, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	return m
}

// saveUpload validates the image of the product form and stores it in the
// uploads dir. It returns the URL the image is served at, or an empty string
// when no image was submitted.
func (p *agromarketwww) saveUpload(r *http.Request, userID string) (string, error) {
	f, hdr, err := r.FormFile(imageField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return "", nil
	case err != nil:
		return "", v1.UserError{
			ErrorCode: v1.ErrorCodeInvalidUpload,
		}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, sanitize.ImageMaxSize+1))
	if err != nil {
		return "", err
	}
	name, err := sanitize.ImageUpload(hdr.Filename, data)
	if err != nil {
		sanitize.LogSecurityEvent(sanitize.EventInvalidUpload, userID,
			map[string]string{
				"filename": hdr.Filename,
				"remote":   util.RemoteAddr(r),
			})
		return "", v1.UserError{
			ErrorCode: v1.ErrorCodeInvalidUpload,
		}
	}

	fn := uuid.New().String() + "_" + name
	err = os.WriteFile(filepath.Join(p.cfg.UploadDir, fn), data, 0600)
	if err != nil {
		return "", err
	}

	log.Infof("Image %v uploaded by %v", fn, userID)

	return routeUploads + fn, nil
}

// handleAddProduct validates the product form of a seller. The validated
// product is handed back to the page, which publishes it.
func (p *agromarketwww) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleAddProduct")

	if r.Method != http.MethodPost {
		p.render(w, r, http.StatusOK, pageSellerAddProduct, nil)
		return
	}

	s := p.session(r)
	uid := p.sessionUserID(r)
	fail := func(e v1.ErrorCodeT, ctx ...string) {
		msg := v1.ErrorCodes[e]
		if len(ctx) > 0 {
			msg = strings.Join(ctx, ", ")
		}
		s.AddFlash(flashDanger, msg)
		p.render(w, r, http.StatusBadRequest, pageSellerAddProduct, nil)
	}

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		fail(v1.ErrorCodeValidation)
		return
	}
	form := formValues(r)

	if hits := sanitize.DetectXSSFields(stringFields(form)); len(hits) > 0 {
		sanitize.LogSecurityEvent(sanitize.EventXSSAttempt, uid,
			map[string]string{
				"form":   "agregar_producto",
				"fields": strings.Join(hits, ","),
				"remote": util.RemoteAddr(r),
			})
		fail(v1.ErrorCodeXSSDetected)
		return
	}

	product, err := sanitize.FormData(form, productSchema)
	if err != nil {
		var fe sanitize.FieldError
		if errors.As(err, &fe) {
			fail(v1.ErrorCodeValidation, fe.Error())
			return
		}
		respondWithError(w, r, "handleAddProduct: FormData: %v", err)
		return
	}

	url, err := p.saveUpload(r, uid)
	if err != nil {
		var ue v1.UserError
		if errors.As(err, &ue) {
			fail(ue.ErrorCode)
			return
		}
		respondWithError(w, r, "handleAddProduct: saveUpload: %v", err)
		return
	}
	if url != "" {
		product["imagen_url"] = url
	}
	product["vendedor_id"] = uid

	s.AddFlash(flashSuccess, "Producto validado correctamente.")
	p.render(w, r, http.StatusOK, pageSellerAddProduct, map[string]interface{}{
		"producto": product,
	})
}

// handleSellerApplication notifies the administrators of a new seller
// application. The application itself is stored by the client; a failed
// notification does not fail the request.
func (p *agromarketwww) handleSellerApplication(w http.ResponseWriter, r *http.Request) {
	log.Tracef("handleSellerApplication")

	var sa v1.SellerApplication
	err := decodeJSON(r, &sa)
	if err != nil {
		respondWithError(w, r, "handleSellerApplication: %v", err)
		return
	}
	if hits := sanitize.DetectXSSFields(map[string]string{
		"nombre":        sa.Name,
		"nombre_tienda": sa.StoreName,
		"ubicacion":     sa.Location,
	}); len(hits) > 0 {
		sanitize.LogSecurityEvent(sanitize.EventXSSAttempt,
			p.sessionUserID(r), map[string]string{
				"form":   "solicitud",
				"fields": strings.Join(hits, ","),
			})
		respondWithError(w, r, "handleSellerApplication",
			v1.UserError{
				ErrorCode:    v1.ErrorCodeXSSDetected,
				ErrorContext: hits,
			})
		return
	}
	email, err := validRecipient(sa.Email)
	if err != nil {
		respondWithError(w, r, "handleSellerApplication: %v", err)
		return
	}

	a := notify.SellerApplication{
		ApplicationID: firstNonEmpty(sa.ApplicationID, uuid.New().String()),
		Name:          firstNonEmpty(sa.Name, defaultDisplayName),
		Email:         email,
		StoreName:     sa.StoreName,
		Location:      sa.Location,
		SubmittedAt: firstNonEmpty(sa.SubmittedAt,
			time.Now().Format(updatedAtLayout)),
	}
	n, err := p.relay.SellerApplication(a)
	if err != nil {
		respondWithError(w, r, "handleSellerApplication: %v", err)
		return
	}
	p.relay.Notify(r.Context(), n)

	util.RespondWithJSON(w, http.StatusOK, v1.MessageReply{
		Success: true,
		Message: "Solicitud enviada correctamente",
	})
}
