package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"curiochain/rpc/modules"
)

var errFingerprintLength = errors.New("fingerprint must be 32 bytes")

type registryPublishParams struct {
	Caller      string `json:"caller"`
	Creator     string `json:"creator"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	URI         string `json:"uri"`
	Fingerprint string `json:"fingerprint"`
	MintPrice   string `json:"mintPrice"`
	RentalFee   string `json:"rentalFee,omitempty"`
}

type registryCreateBundleParams struct {
	Caller    string   `json:"caller"`
	Creator   string   `json:"creator"`
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Members   []string `json:"members"`
	MintPrice string   `json:"mintPrice"`
}

type registryIDParams struct {
	ID string `json:"id"`
}

type registryUnitParams struct {
	UnitID string `json:"unitId"`
}

type registryRentalParams struct {
	ContentID string `json:"contentId"`
	Renter    string `json:"renter"`
}

func singleObjectParam(w http.ResponseWriter, req *RPCRequest) (json.RawMessage, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameter object required", nil)
		return nil, false
	}
	return req.Params[0], true
}

func decodeFingerprint(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, errFingerprintLength
	}
	copy(out[:], raw)
	return out, nil
}

func (s *Server) handleRegistryPublish(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params registryPublishParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	fingerprint, err := decodeFingerprint(params.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid fingerprint", err.Error())
		return
	}
	mintPrice, err := parseAmount(params.MintPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid mintPrice", err.Error())
		return
	}
	var rentalFee *big.Int
	if strings.TrimSpace(params.RentalFee) != "" {
		rentalFee, err = parseAmount(params.RentalFee)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid rentalFee", err.Error())
			return
		}
	}

	content, err := s.node.PublishContent(caller, creator, params.ID, params.Title, params.URI, fingerprint, mintPrice, rentalFee)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, contentResult(content))
}

func (s *Server) handleRegistryCreateBundle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params registryCreateBundleParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	creator, err := parseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	mintPrice, err := parseAmount(params.MintPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid mintPrice", err.Error())
		return
	}

	bundle, err := s.node.CreateBundle(caller, creator, params.ID, params.Title, params.Members, mintPrice)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, bundleResult(bundle))
}

func (s *Server) handleRegistryGetContent(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params registryIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	content, err := s.node.ContentInfo(strings.TrimSpace(params.ID))
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, contentResult(content))
}

func (s *Server) handleRegistryGetBundle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params registryIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	bundle, err := s.node.BundleInfo(strings.TrimSpace(params.ID))
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, bundleResult(bundle))
}

func (s *Server) handleRegistryGetUnit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params registryUnitParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	view, err := s.node.UnitInfo(strings.TrimSpace(params.UnitID))
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, unitResult(view))
}

func (s *Server) handleRegistryRentalStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	raw, ok := singleObjectParam(w, req)
	if !ok {
		return
	}
	var params registryRentalParams
	if err := json.Unmarshal(raw, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	renter, err := parseAddress(params.Renter)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid renter address", err.Error())
		return
	}
	view, err := s.node.RentalStatus(strings.TrimSpace(params.ContentID), renter)
	if err != nil {
		writeModuleError(w, req.ID, modules.ErrorFor(err))
		return
	}
	writeResult(w, req.ID, rentalResult(view))
}
