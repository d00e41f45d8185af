package integration

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
	"github.com/kendall-kelly/eventflow-api/tests/testutil"
	"github.com/kendall-kelly/eventflow-api/utils"
)

type contractView struct {
	Contract     models.EventContract `json:"contract"`
	DocumentPath string               `json:"document_path"`
}

// ContractFlowSuite covers sending and signing contracts, including the
// multipart upload of a signed PDF.
type ContractFlowSuite struct {
	apiSuite
	event    models.Event
	template models.ContractTemplate
}

func TestContractFlowSuite(t *testing.T) {
	suite.Run(t, new(ContractFlowSuite))
}

func (s *ContractFlowSuite) SetupTest() {
	s.apiSuite.SetupTest()
	client := s.createClient("Jamie Smith", "jamie@example.com")
	s.event = s.createEvent(gin.H{"name": "Smith wedding", "client_id": client.ID})
	s.call(http.MethodPost, "/api/v1/contract-templates",
		gin.H{"name": "Wedding agreement", "content": "The photographer agrees to..."}, http.StatusCreated, &s.template)
}

func (s *ContractFlowSuite) sentContract() models.EventContract {
	var view contractView
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/contracts", s.event.ID),
		gin.H{"template_id": s.template.ID}, http.StatusCreated, &view)
	s.Equal(models.ContractStatusDraft, view.Contract.Status)
	s.Equal(s.template.Content, view.Contract.Content)

	s.call(http.MethodPatch, fmt.Sprintf("/api/v1/contracts/%d/status", view.Contract.ID),
		gin.H{"status": "SENT"}, http.StatusOK, &view)
	s.Equal(models.ContractStatusSent, view.Contract.Status)
	return view.Contract
}

func (s *ContractFlowSuite) signMultipart(id uint, filename string, document []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	s.Require().NoError(form.WriteField("signer_name", "Jamie Smith"))
	s.Require().NoError(form.WriteField("signature", "J. Smith"))
	part, err := form.CreateFormFile("document", filename)
	s.Require().NoError(err)
	_, err = part.Write(document)
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/contracts/%d/sign", id), &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ContractFlowSuite) TestSignWithDocument() {
	contract := s.sentContract()

	w := s.signMultipart(contract.ID, "signed.pdf", []byte("%PDF-1.4 signed agreement"))
	var view contractView
	testutil.ExpectStatus(s.T(), w, http.StatusOK, &view)
	s.Equal(models.ContractStatusSigned, view.Contract.Status)
	s.Equal("Jamie Smith", view.Contract.SignerName)
	s.Require().NotNil(view.Contract.DocumentKey)
	s.True(s.docs.Exists(*view.Contract.DocumentKey))
	s.Equal(utils.DocumentDownloadPath(contract.ID), view.DocumentPath)

	var link struct {
		URL string `json:"url"`
	}
	s.call(http.MethodGet, view.DocumentPath, nil, http.StatusOK, &link)
	s.Contains(link.URL, *view.Contract.DocumentKey)

	s.Equal([]string{services.TemplateContractSent, services.TemplateContractSigned}, s.email.SentTemplates())

	code := s.fail(http.MethodPatch, fmt.Sprintf("/api/v1/contracts/%d/status", contract.ID),
		gin.H{"status": "SENT"}, http.StatusBadRequest)
	s.Equal(services.CodeInvalidContractStatus, code)
}

func (s *ContractFlowSuite) TestSignAsJSON() {
	contract := s.sentContract()

	var view contractView
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/contracts/%d/sign", contract.ID),
		gin.H{"signer_name": "Jamie Smith", "signature": "data:image/png;base64,iVBORw0KGgo="}, http.StatusOK, &view)
	s.Equal(models.ContractStatusSigned, view.Contract.Status)
	s.Nil(view.Contract.DocumentKey)
	s.Empty(view.DocumentPath)

	code := s.fail(http.MethodGet, fmt.Sprintf("/api/v1/contracts/%d/document", contract.ID), nil, http.StatusNotFound)
	s.Equal("CONTRACT_DOCUMENT_NOT_FOUND", code)
}

func (s *ContractFlowSuite) TestRejectsBadUploads() {
	contract := s.sentContract()

	w := s.signMultipart(contract.ID, "signed.docx", []byte("%PDF-1.4"))
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_FILE_FORMAT", testutil.ErrorCode(s.T(), w))

	w = s.signMultipart(contract.ID, "signed.pdf", []byte("plain text"))
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_FILE_CONTENT", testutil.ErrorCode(s.T(), w))

	code := s.fail(http.MethodPost, fmt.Sprintf("/api/v1/contracts/%d/sign", contract.ID),
		gin.H{"signer_name": "Jamie Smith", "signature": "data:image/jpeg;base64,AAAA"}, http.StatusBadRequest)
	s.Equal("INVALID_SIGNATURE", code)

	var stored contractView
	s.call(http.MethodGet, fmt.Sprintf("/api/v1/contracts/%d", contract.ID), nil, http.StatusOK, &stored)
	s.Equal(models.ContractStatusSent, stored.Contract.Status, "rejected uploads leave the contract unsigned")
	s.Empty(s.docs.Keys())
}

func (s *ContractFlowSuite) TestSignRequiresSentContract() {
	var view contractView
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/contracts", s.event.ID),
		gin.H{"template_id": s.template.ID}, http.StatusCreated, &view)

	signPath := fmt.Sprintf("/api/v1/contracts/%d/sign", view.Contract.ID)
	for _, signature := range []string{"J. Smith", "", "data:image/jpeg;base64,AAAA"} {
		code := s.fail(http.MethodPost, signPath,
			gin.H{"signer_name": "Jamie Smith", "signature": signature}, http.StatusBadRequest)
		s.Equal(services.CodeInvalidContractStatus, code, "signature %q", signature)
	}

	code := s.fail(http.MethodPatch, fmt.Sprintf("/api/v1/contracts/%d/status", view.Contract.ID),
		gin.H{"status": "SIGNED"}, http.StatusBadRequest)
	s.Equal(services.CodeInvalidContractStatus, code)

	code = s.fail(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/contracts", s.event.ID),
		gin.H{"template_id": 9999}, http.StatusNotFound)
	s.Equal("CONTRACT_TEMPLATE_NOT_FOUND", code)
}
